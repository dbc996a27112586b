package gaze

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
)

// Format identifies how a recording file is encoded.
type Format int

const (
	FormatJSON Format = iota
	FormatJSONGzip
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONGzip:
		return "json.gz"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json.gz"):
		return FormatJSONGzip, nil
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(lower, ".cbor"):
		return FormatCBOR, nil
	}
	return 0, fmt.Errorf("%w: unsupported recording extension %q", ErrMalformed, path)
}

// recordingFile is the keyed layout written by the deserialisation step,
// mirroring the gaze2d array of the exported archives.
type recordingFile struct {
	Gaze2D []Sample `json:"gaze2d"`
}

// DecodeRecording reads all samples from r. The payload may be a bare array
// of samples or an object holding them under "gaze2d".
func DecodeRecording(r io.Reader, format Format) ([]Sample, error) {
	switch format {
	case FormatJSONGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		defer zr.Close()
		return decodeJSON(zr)
	case FormatJSON:
		return decodeJSON(r)
	case FormatCBOR:
		return decodeCBOR(r)
	}
	return nil, fmt.Errorf("%w: unknown format %v", ErrMalformed, format)
}

func decodeJSON(r io.Reader) ([]Sample, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	dec := json.NewDecoder(br)
	if first == '{' {
		var f recordingFile
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrMalformed, err)
		}
		return f.Gaze2D, nil
	}
	var samples []Sample
	if err := dec.Decode(&samples); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrMalformed, err)
	}
	return samples, nil
}

func decodeCBOR(r io.Reader) ([]Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var samples []Sample
	if err := cbor.Unmarshal(data, &samples); err == nil {
		return samples, nil
	}
	var f recordingFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decode cbor: %v", ErrMalformed, err)
	}
	return f.Gaze2D, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}

// EncodeRecording writes samples in the given format. It is used to produce
// fixtures and to convert recordings between formats.
func EncodeRecording(w io.Writer, samples []Sample, format Format) error {
	switch format {
	case FormatJSON:
		return json.NewEncoder(w).Encode(recordingFile{Gaze2D: samples})
	case FormatJSONGzip:
		zw := gzip.NewWriter(w)
		if err := json.NewEncoder(zw).Encode(recordingFile{Gaze2D: samples}); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	case FormatCBOR:
		return cbor.NewEncoder(w).Encode(recordingFile{Gaze2D: samples})
	}
	return fmt.Errorf("unknown format %v", format)
}
