package linker

import (
	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/pkg/collections"
)

// DependencyRef names one export of one linker.
type DependencyRef struct {
	Linker      *Linker
	ExportIndex int
}

// ObjectPath returns the dotted path of the referenced export.
func (r DependencyRef) ObjectPath() string {
	return r.Linker.BuildPathName(pkgfile.Export(r.ExportIndex))
}

type dependencyWalk struct {
	skipLoaded bool
	seen       map[*Linker]*collections.Bitset
	stack      *collections.Stack[DependencyRef]
	out        []DependencyRef
}

func newDependencyWalk(skipLoaded bool) *dependencyWalk {
	return &dependencyWalk{
		skipLoaded: skipLoaded,
		seen:       make(map[*Linker]*collections.Bitset),
		stack:      collections.NewStack[DependencyRef](64),
	}
}

// visit queues ref unless it was seen before or is already loaded.
func (w *dependencyWalk) visit(ref DependencyRef) {
	bits, ok := w.seen[ref.Linker]
	if !ok {
		bits = collections.NewBitset(len(ref.Linker.exports))
		w.seen[ref.Linker] = bits
	}
	if bits.TestAndSet(ref.ExportIndex) {
		return
	}
	if w.skipLoaded {
		if obj := ref.Linker.exports[ref.ExportIndex].Object; obj != nil && !obj.HasAnyFlags(object.FlagNeedLoad) {
			return
		}
	}
	w.out = append(w.out, ref)
	w.stack.Push(ref)
}

func (w *dependencyWalk) run() {
	for {
		ref, ok := w.stack.Pop()
		if !ok {
			return
		}
		ref.Linker.expandDependencies(ref.ExportIndex, w)
	}
}

// expandDependencies queues what export i depends on. Imports are verified
// without verifying the nested packages, which may cross into other linkers.
func (l *Linker) expandDependencies(i int, w *dependencyWalk) {
	for _, dep := range l.Depends(i) {
		switch {
		case dep.IsExport():
			if dep.ExportSlot() < len(l.exports) {
				w.visit(DependencyRef{Linker: l, ExportIndex: dep.ExportSlot()})
			}
		case dep.IsImport():
			if ref, ok := l.resolveImportRef(dep.ImportSlot()); ok {
				w.visit(ref)
			}
		}
	}
}

func (l *Linker) resolveImportRef(i int) (DependencyRef, bool) {
	if i >= len(l.imports) {
		return DependencyRef{}, false
	}
	prev := l.gathering
	l.gathering = true
	err := l.VerifyImport(i)
	l.gathering = prev
	if err != nil {
		l.logger.Debug("gathering dependencies: %v", err)
		return DependencyRef{}, false
	}
	imp := &l.imports[i]
	if imp.SourceLinker == nil || imp.SourceIndex < 0 || imp.SourceLinker.detached {
		return DependencyRef{}, false
	}
	return DependencyRef{Linker: imp.SourceLinker, ExportIndex: imp.SourceIndex}, true
}

// GatherExportDependencies returns the transitive closure of what export i
// depends on according to the depends map, across packages. The export
// itself is not included. With skipLoaded, exports that are already loaded
// are neither returned nor expanded.
func (l *Linker) GatherExportDependencies(i int, skipLoaded bool) []DependencyRef {
	if i < 0 || i >= len(l.exports) || l.depends == nil {
		return nil
	}
	w := newDependencyWalk(skipLoaded)
	w.seen[l] = collections.NewBitset(len(l.exports))
	w.seen[l].Set(i)
	l.expandDependencies(i, w)
	w.run()
	return w.out
}

// GatherImportDependencies returns the export import i resolves to followed
// by everything it depends on.
func (l *Linker) GatherImportDependencies(i int, skipLoaded bool) []DependencyRef {
	ref, ok := l.resolveImportRef(i)
	if !ok {
		return nil
	}
	w := newDependencyWalk(skipLoaded)
	w.visit(ref)
	w.run()
	return w.out
}
