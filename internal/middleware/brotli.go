package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes response compression. Bodies shorter than MinLength and
// content types outside Types are sent as is.
type BrotliConfig struct {
	Quality   int
	MinLength int
	Types     []string
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
	Types:     []string{"application/json"},
}

// brotliWriter holds the body back until it is known to be large enough.
type brotliWriter struct {
	gin.ResponseWriter
	cfg     *BrotliConfig
	encoder *brotli.Writer
	pending []byte
	decided bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.decided {
		if bw.encoder != nil {
			return bw.encoder.Write(data)
		}
		return bw.ResponseWriter.Write(data)
	}

	bw.pending = append(bw.pending, data...)
	if len(bw.pending) >= bw.cfg.MinLength {
		if err := bw.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush commits to the current decision so streamed bodies are not held.
func (bw *brotliWriter) Flush() {
	if !bw.decided {
		_ = bw.decide()
	}
	if bw.encoder != nil {
		_ = bw.encoder.Flush()
	}
	bw.ResponseWriter.Flush()
}

// decide picks compression once: only for a matching content type with
// enough body buffered. The pending bytes are then written out.
func (bw *brotliWriter) decide() error {
	bw.decided = true
	if len(bw.pending) >= bw.cfg.MinLength && bw.compressible() {
		h := bw.ResponseWriter.Header()
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		bw.encoder = brotli.NewWriterLevel(bw.ResponseWriter, bw.cfg.Quality)
		_, err := bw.encoder.Write(bw.pending)
		bw.pending = nil
		return err
	}
	if len(bw.pending) == 0 {
		return nil
	}
	_, err := bw.ResponseWriter.Write(bw.pending)
	bw.pending = nil
	return err
}

func (bw *brotliWriter) compressible() bool {
	ct := bw.ResponseWriter.Header().Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(bw.pending)
	}
	for _, t := range bw.cfg.Types {
		if strings.HasPrefix(ct, t) {
			return true
		}
	}
	return false
}

// finish writes anything still pending and closes the encoder.
func (bw *brotliWriter) finish() error {
	if !bw.decided {
		if err := bw.decide(); err != nil {
			return err
		}
	}
	if bw.encoder != nil {
		return bw.encoder.Close()
	}
	return nil
}

// Brotli compresses JSON responses for clients that accept br.
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < 0 || cfg.Quality > 11 {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}
	if len(cfg.Types) == 0 {
		cfg.Types = DefaultBrotliConfig.Types
	}

	return func(c *gin.Context) {
		// The websocket handshake fails on a wrapped writer.
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{ResponseWriter: c.Writer, cfg: &cfg}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
