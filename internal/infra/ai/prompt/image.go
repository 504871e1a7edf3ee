package prompt

import (
    "fmt"
    "mime"
    "net/http"
    "os"
    "path/filepath"
    "strings"
)

// ReadImage loads an image for inline upload and works out its MIME type,
// first from the extension and then by sniffing the bytes.
func ReadImage(path string) (string, []byte, error) {
    data, err := os.ReadFile(path)
    if err != nil {
        return "", nil, fmt.Errorf("prompt: read image: %w", err)
    }
    mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
    if !strings.HasPrefix(mimeType, "image/") {
        mimeType = http.DetectContentType(data)
    }
    if !strings.HasPrefix(mimeType, "image/") {
        return "", nil, fmt.Errorf("prompt: unable to determine image type for %s", path)
    }
    if i := strings.IndexByte(mimeType, ';'); i >= 0 {
        mimeType = mimeType[:i]
    }
    return mimeType, data, nil
}
