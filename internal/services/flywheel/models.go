package flywheel

// Parents lists the container hierarchy above a container.
type Parents struct {
	Group       string `json:"group"`
	Project     string `json:"project"`
	Subject     string `json:"subject"`
	Session     string `json:"session"`
	Acquisition string `json:"acquisition"`
}

// Analysis is the container a gear run writes into.
type Analysis struct {
	ID      string  `json:"_id"`
	Label   string  `json:"label"`
	Parents Parents `json:"parents"`
}

// Subject is a subject container.
type Subject struct {
	ID    string `json:"_id"`
	Label string `json:"label"`
	Code  string `json:"code"`
}

// Session is a session container. Info holds custom metadata.
type Session struct {
	ID      string         `json:"_id"`
	Label   string         `json:"label"`
	Info    map[string]any `json:"info"`
	Parents Parents        `json:"parents"`
}

// File is a file attached to a container.
type File struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Acquisition is an acquisition container with its files.
type Acquisition struct {
	ID    string `json:"_id"`
	Label string `json:"label"`
	Files []File `json:"files"`
}

// FileTypeDICOM is the platform's type for DICOM archives.
const FileTypeDICOM = "dicom"

// DICOMFiles returns the acquisition files typed as DICOM.
func (a Acquisition) DICOMFiles() []File {
	files := make([]File, 0, len(a.Files))
	for _, f := range a.Files {
		if f.Type == FileTypeDICOM {
			files = append(files, f)
		}
	}
	return files
}

// Version is the platform release information.
type Version struct {
	Release string `json:"release"`
}

type fileInfoResponse struct {
	Info map[string]any `json:"info"`
}
