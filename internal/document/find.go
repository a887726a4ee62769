package document

import (
	"path/filepath"
	"time"

	"github.com/muesli/gitcha"
)

// Extensions are the file patterns offered for import.
var Extensions = []string{"*.txt", "*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown"}

// File is a candidate for import.
type File struct {
	Path    string
	Name    string // path relative to the search root
	ModTime time.Time
}

// Find walks dir for importable files, honoring .gitignore unless all is
// set. The channel is closed when the walk finishes.
func Find(dir string, all bool) (<-chan File, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var ch chan gitcha.SearchResult
	if all {
		ch, err = gitcha.FindAllFilesExcept(root, Extensions, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(root, Extensions, nil)
	}
	if err != nil {
		return nil, err
	}

	out := make(chan File)
	go func() {
		defer close(out)
		for res := range ch {
			name, err := filepath.Rel(root, res.Path)
			if err != nil {
				name = res.Path
			}
			out <- File{Path: res.Path, Name: name, ModTime: res.Info.ModTime()}
		}
	}()
	return out, nil
}
