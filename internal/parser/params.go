package parser

// Canonical parameter names as they appear in column headers and JSON.
const (
	ParamRPM         = "RPM"
	ParamPAv         = "P-Av"
	ParamTorque      = "Torque"
	ParamTexAv       = "TexAv"
	ParamPower       = "Power"
	ParamIMEP        = "IMEP"
	ParamBMEP        = "BMEP"
	ParamPMEP        = "PMEP"
	ParamFMEP        = "FMEP"
	ParamDRatio      = "DRatio"
	ParamPurCyl      = "PurCyl"
	ParamSeff        = "Seff"
	ParamTeff        = "Teff"
	ParamCeff        = "Ceff"
	ParamBSFC        = "BSFC"
	ParamTCAv        = "TC-Av"
	ParamTUbMax      = "TUbMax"
	ParamMaxDeg      = "MaxDeg"
	ParamTiming      = "Timing"
	ParamDelay       = "Delay"
	ParamDurat       = "Durat"
	ParamTAF         = "TAF"
	ParamVibeDelay   = "VibeDelay"
	ParamVibeDurat   = "VibeDurat"
	ParamVibeA       = "VibeA"
	ParamVibeM       = "VibeM"
	ParamPCylMax     = "PCylMax"
	ParamDeto        = "Deto"
	ParamConvergence = "Convergence"

	// ParamTCylMax carries the basic format's in-cylinder temperature on a
	// merged record, next to the superset's own TC-Av.
	ParamTCylMax = "TCylMax"
)
