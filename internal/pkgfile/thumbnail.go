package pkgfile

// ThumbnailEntry locates one thumbnail payload.
type ThumbnailEntry struct {
	ClassName  string
	ObjectPath string // object path without the package name
	FileOffset int32
}

// Thumbnail is a decoded thumbnail payload.
type Thumbnail struct {
	Width  int32
	Height int32
	Data   []byte
}

// ReadThumbnailTable decodes the table at the current position.
func ReadThumbnailTable(r *Reader) ([]ThumbnailEntry, error) {
	n, err := r.ReadCount("thumbnail", 12)
	if err != nil {
		return nil, err
	}
	entries := make([]ThumbnailEntry, n)
	for i := range entries {
		if entries[i].ClassName, err = r.ReadString(); err != nil {
			return nil, err
		}
		if entries[i].ObjectPath, err = r.ReadString(); err != nil {
			return nil, err
		}
		if entries[i].FileOffset, err = r.ReadInt32(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// WriteThumbnailTable encodes the table.
func WriteThumbnailTable(w *Writer, entries []ThumbnailEntry) {
	w.WriteInt32(int32(len(entries)))
	for _, e := range entries {
		w.WriteString(e.ClassName)
		w.WriteString(e.ObjectPath)
		w.WriteInt32(e.FileOffset)
	}
}

// ReadThumbnail decodes a payload at the current position.
func ReadThumbnail(r *Reader) (*Thumbnail, error) {
	t := &Thumbnail{}
	var err error
	if t.Width, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if t.Height, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	n, err := r.ReadCount("thumbnail byte", 1)
	if err != nil {
		return nil, err
	}
	if t.Data, err = r.ReadBytes(n); err != nil {
		return nil, err
	}
	return t, nil
}

// Write encodes the payload.
func (t *Thumbnail) Write(w *Writer) {
	w.WriteInt32(t.Width)
	w.WriteInt32(t.Height)
	w.WriteInt32(int32(len(t.Data)))
	w.WriteBytes(t.Data)
}
