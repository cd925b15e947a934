package linker

import (
	"strings"

	"github.com/package-linker/internal/pkgfile"
	apperrors "github.com/package-linker/pkg/errors"
)

// Thumbnails returns the thumbnail table, reading it on first use. Only
// editor sessions keep thumbnails; elsewhere the table is empty.
func (l *Linker) Thumbnails() ([]pkgfile.ThumbnailEntry, error) {
	if !l.opts.Editor || l.summary == nil || l.summary.ThumbnailTableOffset <= 0 || l.detached {
		return nil, nil
	}
	if l.thumbs != nil {
		return l.thumbs, nil
	}
	saved := l.r.Tell()
	defer func() { _ = l.r.Seek(saved) }()
	if err := l.r.Seek(int64(l.summary.ThumbnailTableOffset)); err != nil {
		return nil, err
	}
	entries, err := pkgfile.ReadThumbnailTable(l.r)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []pkgfile.ThumbnailEntry{}
	}
	l.thumbs = entries
	return entries, nil
}

// LoadThumbnail reads the thumbnail of the object named by fullName, given
// as "ClassName Package.Path". Missing thumbnails are NotFound errors.
func (l *Linker) LoadThumbnail(fullName string) (*pkgfile.Thumbnail, error) {
	className, path, ok := strings.Cut(fullName, " ")
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "%q is not a full object name", fullName)
	}
	objectPath := path
	if rest, found := strings.CutPrefix(path, l.pkgName+"."); found {
		objectPath = rest
	}

	entries, err := l.Thumbnails()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !strings.EqualFold(e.ClassName, className) || !strings.EqualFold(e.ObjectPath, objectPath) {
			continue
		}
		saved := l.r.Tell()
		defer func() { _ = l.r.Seek(saved) }()
		if err := l.r.Seek(int64(e.FileOffset)); err != nil {
			return nil, err
		}
		return pkgfile.ReadThumbnail(l.r)
	}
	return nil, apperrors.Newf(apperrors.CodeNotFound, "no thumbnail for %s in %s", fullName, l.pkgName)
}
