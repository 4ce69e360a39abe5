package codes

// Stable error codes printed by the CLI and carried by *rfunctions.Error.
const (
	Usage     = "RFN_E_USAGE"
	Encode    = "RFN_E_ENCODE"
	Decode    = "RFN_E_DECODE"
	Workspace = "RFN_E_WORKSPACE"
	Launch    = "RFN_E_LAUNCH"
	Process   = "RFN_E_PROCESS"
	Timeout   = "RFN_E_TIMEOUT"
	Canceled  = "RFN_E_CANCELED"
	IO        = "RFN_E_IO"
	Config    = "RFN_E_CONFIG"
)

// All returns every code in a stable order.
func All() []string {
	return []string{Usage, Encode, Decode, Workspace, Launch, Process, Timeout, Canceled, IO, Config}
}
