package pkgfile

// PackageTag is the magic number at the start (and end) of every package.
const PackageTag uint32 = 0x9E2A83C1

// PackageTagSwapped is the tag as seen from a package of the opposite
// byte order, which this loader does not read.
const PackageTagSwapped uint32 = 0xC1832A9E

// File versions.
const (
	FileVersionOldestLoadable int32 = 214
	// FileVersionMagicPostTag is the first version that ends with a copy of the tag.
	FileVersionMagicPostTag int32 = 260
	FileVersionLatest       int32 = 352

	LicenseeVersionLatest int32 = 0
)

// Package flags.
const (
	PkgNewlyCreated       uint32 = 0x00000001
	PkgCompiledIn         uint32 = 0x00000010
	PkgContainsMap        uint32 = 0x00020000
	PkgStoreCompressed    uint32 = 0x02000000
	PkgFilterEditorOnly   uint32 = 0x80000000
	PkgContainsMetaData   uint32 = 0x00000400
	PkgReloadingForCooker uint32 = 0x40000000
)

// CustomVersion is one (key, version) pair recorded in a summary.
type CustomVersion struct {
	Key     GUID
	Version int32
}

// CustomVersionRegistry lists the custom versions the running build knows.
type CustomVersionRegistry map[GUID]CustomVersionInfo

// CustomVersionInfo describes a registered custom version.
type CustomVersionInfo struct {
	Name    string
	Version int32
}
