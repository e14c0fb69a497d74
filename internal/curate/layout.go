package curate

// Source is one pipeline table feeding an output.
type Source struct {
	File  string
	Comma rune
	Drop  []string
}

// Output is one published table, named <acquisition>_<Kind>.csv.
type Output struct {
	Kind    string
	Sources []Source
}

// Image is a pipeline image republished as <acquisition>_<Name>.
type Image struct {
	Name string
}

// Outputs lists the tables the pipeline leaves in the work directory.
var Outputs = []Output{
	{Kind: "thickness", Sources: []Source{
		{File: "aparc_lh.csv", Comma: '\t'},
		{File: "aparc_rh.csv", Comma: '\t'},
	}},
	{Kind: "area", Sources: []Source{
		{File: "aparc_area_lh.csv", Comma: '\t'},
		{File: "aparc_area_rh.csv", Comma: '\t'},
	}},
	{Kind: "volume", Sources: []Source{
		{File: "synthseg.vol.csv", Comma: ',', Drop: []string{"subject"}},
	}},
	{Kind: "qc", Sources: []Source{
		{File: "synthseg.qc.csv", Comma: ',', Drop: []string{"subject"}},
	}},
}

// Images lists the images copied to the output directory.
var Images = []Image{
	{Name: "synthSR.nii.gz"},
	{Name: "aparc+aseg.nii.gz"},
}

// RequiredFiles returns every work-directory file curation reads.
func RequiredFiles() []string {
	files := make([]string, 0, 8)
	for _, out := range Outputs {
		for _, src := range out.Sources {
			files = append(files, src.File)
		}
	}
	for _, img := range Images {
		files = append(files, img.Name)
	}
	return files
}
