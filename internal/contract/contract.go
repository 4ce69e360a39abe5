package contract

import "github.com/marcohefti/rfunctions/internal/codes"

// Contract describes what rfn promises to callers and to the R side: the
// bridge command line, the exchange files and the CLI surface.
type Contract struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	BridgeVersion int       `json:"bridgeVersion"`
	Bridge        Bridge    `json:"bridge"`
	Files         []File    `json:"files"`
	Commands      []Command `json:"commands"`
	Errors        []Error   `json:"errors"`
	Env           []EnvVar  `json:"env"`
}

type Bridge struct {
	Argv       []string `json:"argv"`
	Positional string   `json:"positional"`
	Named      string   `json:"named"`
	NoArgs     string   `json:"noArgs"`
	Result     string   `json:"result"`
}

type File struct {
	ID          string `json:"id"`
	PathPattern string `json:"pathPattern"`
	Writer      string `json:"writer"` // host|interpreter
	Required    bool   `json:"required"`
}

type Command struct {
	ID      string `json:"id"`
	Usage   string `json:"usage"`
	Summary string `json:"summary"`
}

type Error struct {
	Code      string `json:"code"`
	Summary   string `json:"summary"`
	Retryable bool   `json:"retryable"`
}

type EnvVar struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

func Build(version string) Contract {
	return Contract{
		Name:          "rfn",
		Version:       version,
		BridgeVersion: 1,
		Bridge: Bridge{
			Argv:       []string{"<rscript>", "<workspace>/bridge.R", "<sourceFile>", "<function>", "<workspace>/input.json", "<workspace>/output.json"},
			Positional: "JSON array in input.json; elements become positional arguments",
			Named:      "JSON object in input.json; members become named arguments",
			NoArgs:     "input.json is not written; the function is called with no arguments",
			Result:     "jsonlite::write_json(auto_unbox = TRUE, null = \"null\", na = \"null\", digits = NA); no output.json means the caller falls back to stdout",
		},
		Files: []File{
			{ID: "bridge.R", PathPattern: "<tempDir>/rfn-<callId>/bridge.R", Writer: "host", Required: true},
			{ID: "input.json", PathPattern: "<tempDir>/rfn-<callId>/input.json", Writer: "host", Required: false},
			{ID: "output.json", PathPattern: "<tempDir>/rfn-<callId>/output.json", Writer: "interpreter", Required: false},
			{ID: "owner.json", PathPattern: "<tempDir>/rfn-<callId>/owner.json", Writer: "host", Required: true},
		},
		Commands: []Command{
			{ID: "call", Usage: "rfn call --source <file.R> --function <name> [--args <json>|--args-file <file>] [--timeout <d>] [--no-check] [--out <file>] [--json]", Summary: "Call one R function and print its result."},
			{ID: "batch", Usage: "rfn batch --file <calls.yaml|calls.json> [--concurrency N] [--out <file>] [--metrics] [--json]", Summary: "Run a calls file concurrently; results keep input order."},
			{ID: "doctor", Usage: "rfn doctor [--json]", Summary: "Check the interpreter, jsonlite and the scratch directory."},
			{ID: "contract", Usage: "rfn contract [--json]", Summary: "Print this contract."},
			{ID: "init", Usage: "rfn init [--config rfn.config.yaml] [--rscript <cmd>] [--json]", Summary: "Write a project config pinning the interpreter."},
			{ID: "gc", Usage: "rfn gc [--tmpdir <dir>] [--max-age 1h] [--dry-run] [--json]", Summary: "Remove call workspaces whose owning process is gone."},
			{ID: "version", Usage: "rfn version", Summary: "Print the rfn version."},
		},
		Errors: []Error{
			{Code: codes.Usage, Summary: "invalid flags, request shape, or mixed positional and named arguments", Retryable: false},
			{Code: codes.Encode, Summary: "arguments are outside the JSON value model", Retryable: false},
			{Code: codes.Decode, Summary: "output.json is not valid JSON", Retryable: false},
			{Code: codes.Workspace, Summary: "call workspace could not be created or written", Retryable: true},
			{Code: codes.Launch, Summary: "interpreter could not be started", Retryable: false},
			{Code: codes.Process, Summary: "interpreter exited non-zero (load error, missing function, R error)", Retryable: false},
			{Code: codes.Timeout, Summary: "call exceeded its timeout and was killed", Retryable: true},
			{Code: codes.Canceled, Summary: "call was canceled and killed", Retryable: true},
			{Code: codes.IO, Summary: "reading or writing a CLI input or output file failed", Retryable: true},
			{Code: codes.Config, Summary: "config file is invalid", Retryable: false},
		},
		Env: []EnvVar{
			{Name: "RFN_RSCRIPT", Summary: "interpreter command (split on spaces); default Rscript"},
			{Name: "RFN_TMPDIR", Summary: "parent directory for call workspaces"},
			{Name: "RFN_TIMEOUT", Summary: "default call timeout (Go duration or seconds)"},
			{Name: "RFN_LOG_LEVEL", Summary: "DEBUG|INFO|WARN|ERROR; default WARN"},
		},
	}
}
