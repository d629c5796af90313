// Package artifacts - standing repository files for generated apps
// Every deployed repository carries a LICENSE and README.md owned by
// the service, regardless of what the model produced.
package artifacts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// Reserved file names. Model output under these names is overwritten.
const (
	LicenseFile = "LICENSE"
	ReadmeFile  = "README.md"
)

// Augment writes the LICENSE and README.md entries into files and
// returns the same set. Existing entries under the reserved names are
// replaced.
func Augment(files models.FileSet, task, brief string) models.FileSet {
	if files == nil {
		files = models.FileSet{}
	}
	files[LicenseFile] = []byte(mitLicense(time.Now().Year()))
	files[ReadmeFile] = []byte(readme(task, brief, files))
	return files
}

var licenseTemplate = `MIT License

Copyright (c) %d Student Project

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`

func mitLicense(year int) string {
	return fmt.Sprintf(licenseTemplate, year)
}

var readmeTemplate = `# %s

## Project Summary

%s

**Generated:** %s UTC

## Files

%s

## Setup Instructions

1. Clone this repository:
   ` + "```bash" + `
   git clone <repository-url>
   cd %s
   ` + "```" + `

2. Open in browser:
   - Simply open ` + "`index.html`" + ` in your web browser
   - Or use a local server:
     ` + "```bash" + `
     python -m http.server 8000
     # Visit http://localhost:8000
     ` + "```" + `

## Usage

Open the application in a modern web browser. The app will automatically handle the requirements as specified in the project brief.

## Code Explanation

### Main Components

- **index.html**: Main application interface and structure
- **style.css**: Styling and layout (if separate file)
- **script.js**: Application logic and interactivity (if separate file)

The application is built using standard web technologies (HTML5, CSS3, JavaScript) and may include external libraries loaded via CDN for additional functionality.

### Key Features

The application implements all requirements specified in the brief, with proper error handling and user-friendly interface design.

## Technical Details

- Pure client-side application (no backend required)
- External libraries loaded from CDN (no build process needed)
- Responsive design for various screen sizes
- Modern browser required (Chrome, Firefox, Safari, Edge)

## License

This project is licensed under the MIT License - see the LICENSE file for details.

## Deployment

This application is deployed on GitHub Pages at the repository's Pages URL.
`

// readme renders the project README. The file listing is sorted and
// skips README.md itself.
func readme(task, brief string, files models.FileSet) string {
	names := make([]string, 0, len(files))
	for name := range files {
		if name == ReadmeFile {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	listing := make([]string, len(names))
	for i, name := range names {
		listing[i] = fmt.Sprintf("- `%s`", name)
	}

	generated := time.Now().UTC().Format("2006-01-02 15:04:05")

	return fmt.Sprintf(readmeTemplate, task, brief, generated, strings.Join(listing, "\n"), task)
}
