package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// minCompressSize keeps tiny bodies uncompressed.
const minCompressSize = 256

// writeJSON encodes v and compresses it with brotli or gzip when the client
// accepts either.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.Error("response_encode_failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	body = append(body, '\n')

	header := w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Cache-Control", "no-store")
	header.Add("Vary", "Accept-Encoding")

	encoding := ""
	if len(body) >= minCompressSize {
		encoding = negotiateEncoding(r.Header.Get("Accept-Encoding"))
	}

	var finalBody []byte
	switch encoding {
	case "br":
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write(body)
		bw.Close()
		finalBody = buf.Bytes()
	case "gzip":
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		gw.Write(body)
		gw.Close()
		finalBody = buf.Bytes()
	default:
		finalBody = body
	}

	if encoding != "" {
		header.Set("Content-Encoding", encoding)
	}
	header.Set("Content-Length", strconv.Itoa(len(finalBody)))
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_, _ = w.Write(finalBody)
	}
}

// negotiateEncoding prefers brotli over gzip and honours q=0.
func negotiateEncoding(accept string) string {
	var br, gz bool
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return "br"
	case gz:
		return "gzip"
	}
	return ""
}
