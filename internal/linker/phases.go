package linker

import (
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/source"
	apperrors "github.com/package-linker/pkg/errors"
)

func (l *Linker) parseSummary() (Status, error) {
	if existing := l.ld.registry.Find(l.pkgName); existing != nil && existing != l {
		return StatusFailed, apperrors.Newf(apperrors.CodeInvalidInput, "package %s already has a linker", l.pkgName)
	}

	if l.summary == nil {
		// The size is unknown until the source has something resident.
		if !l.waitFor(0, summaryPrecacheSize) {
			return StatusTimedOut, nil
		}
		size := l.src.TotalSize()
		if size > summaryPrecacheSize {
			size = summaryPrecacheSize
		}
		if !l.waitFor(0, size) {
			return StatusTimedOut, nil
		}
		if err := l.r.Seek(0); err != nil {
			return StatusFailed, err
		}
		s, err := pkgfile.ReadSummary(l.r)
		if err != nil {
			return StatusFailed, err
		}
		warnings, err := s.Validate(pkgfile.ValidationPolicy{EditorData: l.opts.Editor, CustomVersions: l.opts.CustomVersions})
		for _, w := range warnings {
			l.warn("", "%s", w)
		}
		if err != nil {
			return StatusFailed, err
		}
		l.summary = s
	}
	s := l.summary

	if s.HasFlag(pkgfile.PkgStoreCompressed) {
		if !l.waitFor(0, l.src.TotalSize()) {
			return StatusTimedOut, nil
		}
		image, err := pkgfile.Inflate(l.r, s)
		if err != nil {
			return StatusFailed, err
		}
		if err := l.src.Close(); err != nil {
			l.logger.Warn("closing compressed source: %v", err)
		}
		l.src = source.NewMemory(image)
		l.r = pkgfile.NewReader(l.src)
		l.logger.Debug("inflated %d chunks into %d bytes", len(s.CompressedChunks), len(image))
	}

	if l.opts.VerifyTrailingTag && s.HasTrailingTag() {
		size := l.src.TotalSize()
		if !l.waitFor(size-4, 4) {
			return StatusTimedOut, nil
		}
		if err := pkgfile.VerifyTrailingTag(l.r, s.Tag); err != nil {
			return StatusFailed, err
		}
	}

	l.root.Package().Flags = s.PackageFlags
	if l.opts.FindExportsInMemory {
		l.root.Package().FindExportsInMemoryFirst = true
	}
	return StatusLoaded, nil
}

// seekTable positions the reader for the next batch of a table phase.
func (l *Linker) seekTable(offset int32) error {
	if l.cursor == 0 {
		return l.r.Seek(int64(offset))
	}
	return l.r.Seek(l.tablePos)
}

func (l *Linker) loadNameMap() (Status, error) {
	s := l.summary
	if l.cursor == 0 {
		if !l.waitFor(int64(s.NameOffset), int64(s.TotalHeaderSize-s.NameOffset)) {
			return StatusTimedOut, nil
		}
		if err := l.r.CheckCount("name", int64(s.NameCount), 4); err != nil {
			return StatusFailed, err
		}
		l.names = make(pkgfile.NameTable, 0, s.NameCount)
	}
	if err := l.seekTable(s.NameOffset); err != nil {
		return StatusFailed, err
	}
	for l.cursor < int(s.NameCount) && !l.isTimeLimitExceeded("loading names", l.granularity) {
		t, err := l.r.ReadText()
		if err != nil {
			return StatusFailed, err
		}
		l.names = append(l.names, t)
		l.cursor++
	}
	l.tablePos = l.r.Tell()
	if l.cursor < int(s.NameCount) {
		return StatusTimedOut, nil
	}
	return StatusLoaded, nil
}

func (l *Linker) bounds() pkgfile.Bounds {
	return pkgfile.Bounds{Imports: int(l.summary.ImportCount), Exports: int(l.summary.ExportCount)}
}

func (l *Linker) loadImportMap() (Status, error) {
	s := l.summary
	if l.cursor == 0 {
		if err := l.r.Seek(int64(s.ImportOffset)); err != nil {
			return StatusFailed, err
		}
		if err := l.r.CheckCount("import", int64(s.ImportCount), 1); err != nil {
			return StatusFailed, err
		}
		l.imports = make([]Import, 0, s.ImportCount)
	}
	if err := l.seekTable(s.ImportOffset); err != nil {
		return StatusFailed, err
	}
	b := l.bounds()
	for l.cursor < int(s.ImportCount) && !l.isTimeLimitExceeded("loading imports", l.granularity) {
		entry, err := pkgfile.ReadImport(l.r, l.names, b)
		if err != nil {
			return StatusFailed, err
		}
		l.imports = append(l.imports, Import{ImportEntry: entry, SourceIndex: -1})
		l.cursor++
	}
	l.tablePos = l.r.Tell()
	if l.cursor < int(s.ImportCount) {
		return StatusTimedOut, nil
	}
	return StatusLoaded, nil
}

func (l *Linker) loadExportMap() (Status, error) {
	s := l.summary
	if l.cursor == 0 {
		if err := l.r.Seek(int64(s.ExportOffset)); err != nil {
			return StatusFailed, err
		}
		if err := l.r.CheckCount("export", int64(s.ExportCount), 1); err != nil {
			return StatusFailed, err
		}
		l.exports = make([]Export, 0, s.ExportCount)
	}
	if err := l.seekTable(s.ExportOffset); err != nil {
		return StatusFailed, err
	}
	// Fixups may have added imports; exports written by the package still
	// reference only the stored ones.
	b := l.bounds()
	for l.cursor < int(s.ExportCount) && !l.isTimeLimitExceeded("loading exports", l.granularity) {
		entry, err := pkgfile.ReadExport(l.r, l.names, b)
		if err != nil {
			return StatusFailed, err
		}
		l.exports = append(l.exports, Export{ExportEntry: entry, HashNext: -1})
		l.cursor++
	}
	l.tablePos = l.r.Tell()
	if l.cursor < int(s.ExportCount) {
		return StatusTimedOut, nil
	}
	return StatusLoaded, nil
}

func (l *Linker) loadDependsMap() (Status, error) {
	s := l.summary
	if !l.opts.readsDepends() || s.DependsOffset <= 0 {
		l.depends = nil
		return StatusLoaded, nil
	}
	if l.cursor == 0 {
		l.depends = make([][]pkgfile.PackageIndex, 0, len(l.exports))
	}
	if err := l.seekTable(s.DependsOffset); err != nil {
		return StatusFailed, err
	}
	b := l.bounds()
	for l.cursor < len(l.exports) && !l.isTimeLimitExceeded("loading depends", l.granularity) {
		deps, err := pkgfile.ReadDepends(l.r, b)
		if err != nil {
			return StatusFailed, err
		}
		l.depends = append(l.depends, deps)
		l.cursor++
	}
	l.tablePos = l.r.Tell()
	if l.cursor < len(l.exports) {
		return StatusTimedOut, nil
	}
	return StatusLoaded, nil
}

func (l *Linker) buildExportHash() (Status, error) {
	for l.cursor < len(l.exports) && !l.isTimeLimitExceeded("building export hash", l.granularity) {
		l.hashExport(l.cursor)
		l.cursor++
	}
	if l.cursor < len(l.exports) {
		return StatusTimedOut, nil
	}
	return StatusLoaded, nil
}

func (l *Linker) findExistingExports() (Status, error) {
	if !l.opts.Editor || l.summary.HasFlag(pkgfile.PkgContainsMap) {
		return StatusLoaded, nil
	}
	for l.cursor < len(l.exports) && !l.isTimeLimitExceeded("finding existing exports", l.granularity) {
		l.FindExistingExport(l.cursor)
		l.cursor++
	}
	if l.cursor < len(l.exports) {
		return StatusTimedOut, nil
	}
	return StatusLoaded, nil
}

func (l *Linker) finalize() (Status, error) {
	if err := l.ld.registry.add(l); err != nil {
		return StatusFailed, err
	}
	l.ld.forget(l)
	if l.flags&LoadNoVerify == 0 {
		if err := l.Verify(); err != nil {
			l.ld.registry.remove(l)
			return StatusFailed, err
		}
	}
	if l.flags&LoadQuiet == 0 {
		l.logger.Info("linked %d names, %d imports, %d exports", len(l.names), len(l.imports), len(l.exports))
	}
	return StatusLoaded, nil
}

// Verify resolves every import.
func (l *Linker) Verify() error {
	for i := range l.imports {
		if err := l.VerifyImport(i); err != nil {
			return err
		}
	}
	return nil
}
