package layers

import "errors"

// ErrAssetMissing is returned when the manifest or a layer source file
// cannot be found; callers must refuse to serve frames until fixed.
var ErrAssetMissing = errors.New("asset missing")
