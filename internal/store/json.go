package store

// WriteJSONAtomic writes v as indented JSON through WriteFileAtomic.
func WriteJSONAtomic(path string, v any) error {
	b, err := IndentedJSON(v)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b, 0o644)
}
