package linker

import (
	"fmt"
	"strings"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/property"
	apperrors "github.com/package-linker/pkg/errors"
)

func preloadObject(obj *object.Object) error {
	if obj == nil {
		return nil
	}
	if owner, _ := obj.Loader(); owner != nil {
		return owner.Preload(obj)
	}
	return nil
}

// Preload deserializes obj if it still needs loading. Objects owned by
// another linker are forwarded to it. The bytes consumed must equal the
// export's serial size; a mismatch fails the load unless the class is
// deprecated.
func (l *Linker) Preload(obj *object.Object) error {
	if obj == nil || !obj.HasAnyFlags(object.FlagNeedLoad) {
		return nil
	}
	owner, i := obj.Loader()
	if owner == nil {
		return nil
	}
	if owner != object.Loader(l) {
		return owner.Preload(obj)
	}
	if l.detached || i < 0 || i >= len(l.exports) {
		return nil
	}

	if super := obj.SuperStruct(); super != nil {
		if err := preloadObject(super); err != nil {
			return err
		}
	}
	if !obj.HasAnyFlags(object.FlagNeedLoad) {
		// loaded while preloading the super chain
		return nil
	}

	exp := l.exports[i]
	saved := l.r.Tell()
	defer func() { _ = l.r.Seek(saved) }()

	if err := l.r.Seek(exp.SerialOffset); err != nil {
		return err
	}
	l.src.Precache(exp.SerialOffset, exp.SerialSize)
	obj.ClearFlags(object.FlagNeedLoad)

	ar := property.NewArchiveReader(l.r, l.names, l.bounds(), l.IndexToObject)
	if err := l.ld.codec.Deserialize(obj, ar); err != nil {
		return apperrors.Wrap(apperrors.GetErrorCode(err), "deserializing "+obj.FullName(), err)
	}

	consumed := l.r.Tell() - exp.SerialOffset
	if consumed != exp.SerialSize {
		msg := "serial size mismatch: read %d bytes, expected %d"
		if obj.Class().HasAnyFlags(object.ClassDeprecated) {
			l.report(Diagnostic{Severity: SeverityWarning, Code: apperrors.CodeSizeMismatch, Object: obj.PathName(),
				Message: "deprecated class: " + fmt.Sprintf(msg, consumed, exp.SerialSize)})
		} else {
			err := apperrors.Newf(apperrors.CodeSizeMismatch, "%s: "+msg, obj.FullName(), consumed, exp.SerialSize)
			l.report(Diagnostic{Severity: SeverityError, Code: apperrors.CodeSizeMismatch, Object: obj.PathName(),
				Message: err.Message})
			return err
		}
	}

	if c := obj.AsClass(); c != nil {
		if cdo := l.findTopLevelExportIn(object.DefaultObjectPrefix+obj.Name(), exp.OuterIndex); cdo >= 0 {
			if _, err := l.CreateExportAndPreload(cdo, true); err != nil {
				return err
			}
		}
	}

	if old := l.exports[i].OldClassName; old != "" {
		obj.SetOldClassName(old)
		l.logger.Debug("%s loaded from redirected class %s", obj.PathName(), old)
	}
	return nil
}

// findTopLevelExportIn returns the export named name whose outer is outer.
func (l *Linker) findTopLevelExportIn(name string, outer pkgfile.PackageIndex) int {
	for j := range l.exports {
		if l.exports[j].OuterIndex == outer && strings.EqualFold(l.exports[j].ObjectName, name) {
			return j
		}
	}
	return -1
}
