package rfunctions

import _ "embed"

//go:embed bridge.R
var bridgeScript string

// BridgeScript returns the R program every call runs. It ships inside the
// binary so the engine and the script always speak the same protocol.
func BridgeScript() string { return bridgeScript }

// BridgeArgs lays out the trailing interpreter arguments in the order
// bridge.R reads them. Changing the order here means changing bridge.R.
func BridgeArgs(scriptPath, sourceFile, function, inputPath, outputPath string) []string {
	return []string{scriptPath, sourceFile, function, inputPath, outputPath}
}
