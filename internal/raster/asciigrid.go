package raster

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DecodeASCIIGrid parses an Esri ASCII grid. Both the corner and centre
// forms of the lower-left reference are accepted. Samples are Float64.
func DecodeASCIIGrid(b []byte) (*Raster, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var pending string
	for sc.Scan() {
		word := sc.Text()
		key := strings.ToLower(word)
		if !isHeaderKey(key) {
			pending = word
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("ascii grid: missing value for %s", word)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: %s: %w", word, err)
		}
		header[key] = v
	}

	cols, rows := int(header["ncols"]), int(header["nrows"])
	cell, hasCell := header["cellsize"]
	if cols <= 0 || rows <= 0 || !hasCell || cell <= 0 {
		return nil, fmt.Errorf("%w: ascii grid header needs ncols, nrows and cellsize", ErrUnsupported)
	}

	var xll, yll float64
	switch {
	case hasKey(header, "xllcorner") && hasKey(header, "yllcorner"):
		xll, yll = header["xllcorner"], header["yllcorner"]
	case hasKey(header, "xllcenter") && hasKey(header, "yllcenter"):
		xll, yll = header["xllcenter"]-cell/2, header["yllcenter"]-cell/2
	default:
		return nil, fmt.Errorf("%w: ascii grid header needs a lower-left reference", ErrUnsupported)
	}

	r := New(rows, cols, Float64, Georef{
		OriginX:     xll,
		OriginY:     yll + float64(rows)*cell,
		PixelWidth:  cell,
		PixelHeight: -cell,
	})
	if v, ok := header["nodata_value"]; ok {
		r.WithNoData(v)
	}

	i := 0
	parse := func(s string) error {
		if i >= len(r.Data) {
			return fmt.Errorf("ascii grid: more than %d samples", len(r.Data))
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("ascii grid: sample %d: %w", i, err)
		}
		r.Data[i] = v
		i++
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if i != len(r.Data) {
		return nil, fmt.Errorf("ascii grid: %d samples, want %d", i, len(r.Data))
	}
	return r, nil
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// EncodeASCIIGrid writes r as an Esri ASCII grid with a corner reference.
// The grid format requires square, north-up pixels.
func EncodeASCIIGrid(w io.Writer, r *Raster) error {
	if err := r.validate(); err != nil {
		return err
	}
	g := r.Georef
	if math.Abs(g.PixelWidth+g.PixelHeight) > 1e-12*math.Abs(g.PixelWidth) || g.PixelWidth < 0 {
		return fmt.Errorf("%w: ascii grid needs square north-up pixels, got %v x %v",
			ErrUnsupported, g.PixelWidth, g.PixelHeight)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", r.Cols)
	fmt.Fprintf(bw, "nrows %d\n", r.Rows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatSample(g.OriginX))
	fmt.Fprintf(bw, "yllcorner %s\n", formatSample(g.OriginY+float64(r.Rows)*g.PixelHeight))
	fmt.Fprintf(bw, "cellsize %s\n", formatSample(g.PixelWidth))
	if r.HasNoData {
		fmt.Fprintf(bw, "NODATA_value %s\n", formatSample(r.NoData))
	}
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatSample(r.At(row, col)))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatSample(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
