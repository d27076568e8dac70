package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"arguard/internal/model"
	"arguard/internal/normalize"
)

const maxRecordSize = 1024 * 1024

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseLine decodes one newline-delimited record. Blank lines yield nil.
// Records with missing fields return the observation together with a
// *normalize.DataError; undecodable records return only the error.
func (p *Parser) ParseLine(line string) (*model.Observation, error) {
	trim := strings.TrimSpace(line)
	if trim == "" {
		return nil, nil
	}
	obs, err := normalize.Bytes([]byte(trim))
	if err != nil {
		var de *normalize.DataError
		if errors.As(err, &de) && de.Err != nil {
			return nil, err
		}
		return &obs, err
	}
	return &obs, nil
}

// Reader iterates over the records of a newline-delimited JSON stream in
// input order.
type Reader struct {
	scanner *bufio.Scanner
	parser  *Parser
	line    int
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &Reader{scanner: scanner, parser: NewParser()}
}

// Next returns the next record, or io.EOF after the last one. A record with
// a *normalize.DataError may still carry an observation.
func (r *Reader) Next() (*model.Observation, error) {
	for r.scanner.Scan() {
		r.line++
		obs, err := r.parser.ParseLine(r.scanner.Text())
		if err != nil {
			return obs, fmt.Errorf("line %d: %w", r.line, err)
		}
		if obs == nil {
			continue
		}
		return obs, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

func (r *Reader) Line() int { return r.line }

// Opener opens a fresh copy of an input stream. Training reads its input
// once per pass.
type Opener func() (io.ReadCloser, error)

// FileOpener opens path, decompressing it when it ends in ".gz".
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) {
		return Open(path)
	}
}

func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return zerr
}
