package flipbook

import _ "embed"

//go:embed assets/index.html.tmpl
var indexTemplate string

//go:embed assets/viewer.css
var styleSheet string

//go:embed assets/viewer.js
var viewerScript string

// ViewerScript exposes the embedded viewer source so tests and bundle
// verification can execute it headlessly.
func ViewerScript() string { return viewerScript }
