// Package strings provides pooled, low-allocation string utilities for brazesync.
package strings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unsafe"
)

// BytesToString converts a byte slice to a string without allocation.
// The returned string shares memory with b; b must not be modified
// afterwards.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBytes converts a string to a byte slice without allocation.
// The returned slice shares memory with s and must not be modified.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Clone returns a copy of s backed by fresh memory. Use before retaining
// a string built on a pooled buffer.
func Clone(s string) string {
	return strings.Clone(s)
}

// Contains reports whether substr is within s.
func Contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

// Index returns the index of the first instance of substr in s, or -1.
func Index(s, substr string) int {
	return strings.Index(s, substr)
}

// TrimSpace trims ASCII whitespace from both ends of s without allocating.
func TrimSpace(s string) string {
	start := 0
	end := len(s)

	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}

	return s[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Split splits s by delimiter, returning views into the original string.
func Split(s, delimiter string) []string {
	if len(delimiter) == 0 {
		return []string{s}
	}

	var result []string
	start := 0

	for {
		idx := Index(s[start:], delimiter)
		if idx == -1 {
			result = append(result, s[start:])
			break
		}

		result = append(result, s[start:start+idx])
		start = start + idx + len(delimiter)
	}

	return result
}

// SplitAndTrim splits s by delimiter, trims each element, and drops
// empties. Used for comma-separated configuration lists.
func SplitAndTrim(s, delimiter string) []string {
	if TrimSpace(s) == "" {
		return nil
	}

	parts := Split(s, delimiter)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Join joins elems with delimiter using a single allocation.
func Join(elems []string, delimiter string) string {
	if len(elems) == 0 {
		return ""
	}
	if len(elems) == 1 {
		return elems[0]
	}

	totalLen := (len(elems) - 1) * len(delimiter)
	for _, s := range elems {
		totalLen += len(s)
	}

	builder := NewBuilder(totalLen)
	builder.WriteString(elems[0])
	for i := 1; i < len(elems); i++ {
		builder.WriteString(delimiter)
		builder.WriteString(elems[i])
	}

	return builder.String()
}

// Builder is a byte-backed string builder that hands out its buffer
// zero-copy. Unlike strings.Builder it can be reset and pooled.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{
		buf: make([]byte, 0, capacity),
	}
}

// WriteString appends a string to the builder.
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, StringToBytes(s)...)
}

// WriteBytes appends bytes to the builder.
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// WriteByte appends a single byte. It implements io.ByteWriter and
// never returns an error.
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer.
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string zero-copy. Clone it before returning
// the builder to a pool.
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Bytes returns the underlying byte slice.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the current length.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// BuilderSize selects a pooled builder size class.
type BuilderSize int

const (
	// Small covers URLs, keys, log fragments (under 1KB).
	Small BuilderSize = iota
	// Medium covers request bodies and flattened property bags (to 16KB).
	Medium
	// Large covers batched payloads (16KB+).
	Large
)

var (
	smallBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(1024)
		},
	}
	mediumBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(16 * 1024)
		},
	}
	largeBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(64 * 1024)
		},
	}
)

func poolFor(size BuilderSize) *sync.Pool {
	switch size {
	case Medium:
		return mediumBuilderPool
	case Large:
		return largeBuilderPool
	default:
		return smallBuilderPool
	}
}

// GetBuilder retrieves a pooled builder of the given size class.
func GetBuilder(size BuilderSize) *Builder {
	builder := poolFor(size).Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to its pool.
func PutBuilder(builder *Builder, size BuilderSize) {
	if builder == nil {
		return
	}
	builder.Reset()
	poolFor(size).Put(builder)
}

// Sprintf is a pooled alternative to fmt.Sprintf.
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}

	size := Small
	if estimated := len(format) + len(args)*16; estimated > 16*1024 {
		size = Large
	} else if estimated > 1024 {
		size = Medium
	}

	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	fmt.Fprintf(builder, format, args...)

	return Clone(builder.String())
}

// URLBuilder assembles request URLs on a pooled buffer with proper
// query and path escaping.
type URLBuilder struct {
	builder   *Builder
	size      BuilderSize
	hasParams bool
}

// NewURLBuilder creates a URL builder seeded with baseURL.
func NewURLBuilder(baseURL string) *URLBuilder {
	builder := GetBuilder(Small)
	builder.WriteString(baseURL)

	return &URLBuilder{
		builder:   builder,
		size:      Small,
		hasParams: Contains(baseURL, "?"),
	}
}

// AddPath appends path segments, escaping each.
func (ub *URLBuilder) AddPath(segments ...string) *URLBuilder {
	for _, segment := range segments {
		if segment != "" {
			ub.builder.WriteByte('/')
			ub.builder.WriteString(pathEscape(segment))
		}
	}
	return ub
}

// AddParam appends a query parameter with escaping.
func (ub *URLBuilder) AddParam(key, value string) *URLBuilder {
	if ub.hasParams {
		ub.builder.WriteByte('&')
	} else {
		ub.builder.WriteByte('?')
		ub.hasParams = true
	}

	ub.builder.WriteString(queryEscape(key))
	ub.builder.WriteByte('=')
	ub.builder.WriteString(queryEscape(value))

	return ub
}

// AddParamInt appends an integer query parameter.
func (ub *URLBuilder) AddParamInt(key string, value int) *URLBuilder {
	return ub.AddParam(key, strconv.Itoa(value))
}

// AddParamBool appends a boolean query parameter.
func (ub *URLBuilder) AddParamBool(key string, value bool) *URLBuilder {
	return ub.AddParam(key, strconv.FormatBool(value))
}

// String returns the built URL as an owned string.
func (ub *URLBuilder) String() string {
	return Clone(ub.builder.String())
}

// Close releases the underlying builder back to the pool.
func (ub *URLBuilder) Close() {
	if ub.builder != nil {
		PutBuilder(ub.builder, ub.size)
		ub.builder = nil
	}
}

const upperhex = "0123456789ABCDEF"

func queryEscape(s string) string {
	needEscape := false
	for i := 0; i < len(s); i++ {
		if !isQuerySafe(s[i]) {
			needEscape = true
			break
		}
	}
	if !needEscape {
		return s
	}

	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isQuerySafe(c):
			builder.WriteByte(c)
		case c == ' ':
			builder.WriteByte('+')
		default:
			builder.WriteByte('%')
			builder.WriteByte(upperhex[c>>4])
			builder.WriteByte(upperhex[c&15])
		}
	}

	return Clone(builder.String())
}

func pathEscape(s string) string {
	needEscape := false
	for i := 0; i < len(s); i++ {
		if !isPathSafe(s[i]) {
			needEscape = true
			break
		}
	}
	if !needEscape {
		return s
	}

	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isPathSafe(c) {
			builder.WriteByte(c)
		} else {
			builder.WriteByte('%')
			builder.WriteByte(upperhex[c>>4])
			builder.WriteByte(upperhex[c&15])
		}
	}

	return Clone(builder.String())
}

func isQuerySafe(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func isPathSafe(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~' ||
		c == '/' || c == ':' || c == '@' || c == '!' ||
		c == '$' || c == '&' || c == '\'' || c == '(' ||
		c == ')' || c == '*' || c == '+' || c == ',' ||
		c == ';' || c == '='
}
