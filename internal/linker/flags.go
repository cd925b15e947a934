package linker

// LoadFlags modify a single package load.
type LoadFlags uint32

const (
	// LoadNoWarn suppresses warning log lines; diagnostics are still collected.
	LoadNoWarn LoadFlags = 1 << iota
	// LoadNoVerify skips resolving every import when the session finalizes.
	LoadNoVerify
	// LoadQuiet suppresses informational log lines.
	LoadQuiet
	// LoadFindIfFail accepts any resident object when an import cannot be
	// found in its package.
	LoadFindIfFail
	// LoadNoRedirects disables following object redirectors in Create.
	LoadNoRedirects
	// LoadAsync marks a load issued by a streaming caller.
	LoadAsync
)

// nestedMask is the subset of flags passed on to packages loaded to
// resolve imports.
const nestedMask = LoadNoVerify | LoadNoWarn | LoadQuiet

// Status is the result of one Tick.
type Status int

const (
	StatusLoaded Status = iota
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "Loaded"
	case StatusFailed:
		return "Failed"
	case StatusTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Phase is the state a session has reached. A fresh session is in
// PhaseCreatingLoader; it is usable once it reaches PhaseFinalized.
type Phase int

const (
	PhaseCreatingLoader Phase = iota
	PhaseSummaryParsed
	PhaseNameMapLoaded
	PhaseImportMapLoaded
	PhaseImportMapFixedUp
	PhaseExportMapLoaded
	PhaseImportsRemapped
	PhaseExportMapFixedUp
	PhaseDependsMapLoaded
	PhaseExportHashBuilt
	PhaseExistingExportsFound
	PhaseFinalized
)

var phaseNames = [...]string{
	"CreatingLoader",
	"SummaryParsed",
	"NameMapLoaded",
	"ImportMapLoaded",
	"ImportMapFixedUp",
	"ExportMapLoaded",
	"ImportsRemapped",
	"ExportMapFixedUp",
	"DependsMapLoaded",
	"ExportHashBuilt",
	"ExistingExportsFound",
	"Finalized",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "Unknown"
	}
	return phaseNames[p]
}
