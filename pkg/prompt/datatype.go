package prompt

// DataType identifies how a piece's value should be interpreted.
// Path types hold a filesystem path or object key rather than inline data.
type DataType string

const (
	DataTypeText      DataType = "text"
	DataTypeImagePath DataType = "image_path"
	DataTypeAudioPath DataType = "audio_path"
	DataTypeURL       DataType = "url"
	DataTypeError     DataType = "error"
)

// Valid reports whether the data type is one of the known types.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeText, DataTypeImagePath, DataTypeAudioPath, DataTypeURL, DataTypeError:
		return true
	}
	return false
}
