package middleware

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
		},
	}
}

// CompressionMiddleware provides gzip compression for HTTP responses
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler returns a Gin middleware that gzips eligible responses. Bodies are
// buffered until MinSize bytes are seen; smaller bodies go out unchanged.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cm.clientAcceptsGzip(c.Request) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		gzw := &gzipResponseWriter{
			ResponseWriter: c.Writer,
			middleware:     cm,
			status:         http.StatusOK,
		}
		c.Writer = gzw
		c.Header("Vary", "Accept-Encoding")

		defer func() {
			gzw.finish()
			c.Writer = gzw.ResponseWriter
		}()

		c.Next()
	}
}

// clientAcceptsGzip checks if the client accepts gzip compression
func (cm *CompressionMiddleware) clientAcceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(part, ";")
		coding = strings.TrimSpace(coding)
		if coding != "gzip" && coding != "*" {
			continue
		}
		q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q=")
		if !ok {
			return true
		}
		weight, err := strconv.ParseFloat(q, 64)
		return err == nil && weight > 0
	}
	return false
}

// shouldCompress checks if the content type should be compressed
func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// getGzipWriter gets a gzip writer from the pool
func (cm *CompressionMiddleware) getGzipWriter(w io.Writer) *gzip.Writer {
	gz := cm.pool.Get().(*gzip.Writer)
	gz.Reset(w)
	return gz
}

// returnGzipWriter returns a gzip writer to the pool
func (cm *CompressionMiddleware) returnGzipWriter(gz *gzip.Writer) {
	gz.Reset(io.Discard)
	cm.pool.Put(gz)
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}

// countingWriter counts bytes written to the underlying response.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// gzipResponseWriter defers the compress-or-not decision until either
// MinSize bytes are buffered or the handler finishes.
type gzipResponseWriter struct {
	gin.ResponseWriter
	middleware *CompressionMiddleware

	buf        bytes.Buffer
	gzipWriter *gzip.Writer
	counter    *countingWriter
	status     int
	decided    bool
	compress   bool
	original   int64
}

// WriteHeader records the status code; it is sent once the encoding is decided.
func (gzw *gzipResponseWriter) WriteHeader(statusCode int) {
	if !gzw.decided {
		gzw.status = statusCode
		return
	}
	gzw.ResponseWriter.WriteHeader(statusCode)
}

// WriteHeaderNow forces the decision with whatever has been buffered.
func (gzw *gzipResponseWriter) WriteHeaderNow() {
	if !gzw.decided {
		gzw.decide()
	}
	gzw.ResponseWriter.WriteHeaderNow()
}

func (gzw *gzipResponseWriter) Status() int {
	if !gzw.decided {
		return gzw.status
	}
	return gzw.ResponseWriter.Status()
}

func (gzw *gzipResponseWriter) Written() bool {
	return gzw.decided || gzw.buf.Len() > 0
}

func (gzw *gzipResponseWriter) WriteString(s string) (int, error) {
	return gzw.Write([]byte(s))
}

// Write buffers until the decision is made, then streams either raw or gzipped.
func (gzw *gzipResponseWriter) Write(data []byte) (int, error) {
	gzw.original += int64(len(data))
	if !gzw.decided {
		gzw.buf.Write(data)
		if gzw.buf.Len() < gzw.middleware.config.MinSize {
			return len(data), nil
		}
		if err := gzw.decide(); err != nil {
			return 0, err
		}
		return len(data), nil
	}
	if gzw.compress {
		return gzw.gzipWriter.Write(data)
	}
	return gzw.ResponseWriter.Write(data)
}

// decide picks the encoding, writes headers and flushes the buffer.
func (gzw *gzipResponseWriter) decide() error {
	gzw.decided = true
	header := gzw.ResponseWriter.Header()

	contentType := header.Get("Content-Type")
	if contentType == "" && gzw.buf.Len() > 0 {
		contentType = http.DetectContentType(gzw.buf.Bytes())
		header.Set("Content-Type", contentType)
	}

	gzw.compress = gzw.buf.Len() >= gzw.middleware.config.MinSize &&
		header.Get("Content-Encoding") == "" &&
		gzw.status != http.StatusNoContent &&
		gzw.status != http.StatusNotModified &&
		gzw.middleware.shouldCompress(contentType)

	if gzw.compress {
		header.Set("Content-Encoding", "gzip")
		header.Del("Content-Length")
		gzw.counter = &countingWriter{w: gzw.ResponseWriter}
		gzw.gzipWriter = gzw.middleware.getGzipWriter(gzw.counter)
	}

	gzw.ResponseWriter.WriteHeader(gzw.status)
	if gzw.buf.Len() == 0 {
		return nil
	}

	var err error
	if gzw.compress {
		_, err = gzw.gzipWriter.Write(gzw.buf.Bytes())
	} else {
		_, err = gzw.ResponseWriter.Write(gzw.buf.Bytes())
	}
	gzw.buf.Reset()
	return err
}

// finish flushes any buffered body and records stats.
func (gzw *gzipResponseWriter) finish() {
	if !gzw.decided {
		if gzw.buf.Len() == 0 && !gzw.ResponseWriter.Written() && gzw.status == http.StatusOK {
			// handler wrote nothing; let gin emit its default status
			gzw.decided = true
			return
		}
		_ = gzw.decide()
	}

	var compressed int64
	if gzw.compress {
		_ = gzw.gzipWriter.Close()
		compressed = gzw.counter.n
		gzw.middleware.returnGzipWriter(gzw.gzipWriter)
		gzw.gzipWriter = nil
	}
	gzw.middleware.stats.RecordRequest(gzw.original, compressed, gzw.compress)
}

// Flush forces the decision and flushes both writers
func (gzw *gzipResponseWriter) Flush() {
	if !gzw.decided {
		_ = gzw.decide()
	}
	if gzw.gzipWriter != nil {
		_ = gzw.gzipWriter.Flush()
	}
	gzw.ResponseWriter.Flush()
}

// Hijack hijacks the connection (for WebSocket upgrades, etc.)
func (gzw *gzipResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := gzw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("response writer does not implement http.Hijacker")
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	compressedOriginal int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
		cs.compressedOriginal += originalSize
	}
}

// GetStats returns current compression statistics. The ratio only covers
// responses that were actually compressed.
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(1)
	if cs.compressedOriginal > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.compressedOriginal)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
		"compression_savings": 1.0 - compressionRatio,
		"compression_enabled": cs.CompressedRequests > 0,
	}
}
