package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// PCDType is the encoding of the DATA section of a PCD file.
type PCDType int

const (
	// PCDAscii stores one whitespace separated point per line.
	PCDAscii PCDType = iota
	// PCDBinary stores little endian float32 fields back to back.
	PCDBinary
	// PCDCompressed is recognized but not supported.
	PCDCompressed
)

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

type pcdHeader struct {
	fields []string
	size   []int
	type_  []string
	width  int
	height int
	points int
	data   PCDType
}

// ReadPCDFile reads an organized frame from a PCD file.
func ReadPCDFile(path string) (*Frame, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	frame, err := ReadPCD(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %q", path)
	}
	return frame, nil
}

// WritePCDFile writes frame to path.
func WritePCDFile(frame *Frame, path string, outputType PCDType) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	w := bufio.NewWriter(f)
	if err := WritePCD(frame, w, outputType); err != nil {
		utils.UncheckedError(f.Close())
		return err
	}
	if err := w.Flush(); err != nil {
		utils.UncheckedError(f.Close())
		return err
	}
	return f.Close()
}

// WritePCD writes frame as an organized PCD keeping WIDTH and HEIGHT. Invalid samples are
// written as NaN points.
func WritePCD(frame *Frame, out io.Writer, outputType PCDType) error {
	var dataName string
	switch outputType {
	case PCDAscii:
		dataName = "ascii"
	case PCDBinary:
		dataName = "binary"
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown PCD type %d", outputType)
	}
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		frame.Width(), frame.Height(), frame.Size(), dataName)
	if err != nil {
		return err
	}

	buf := make([]byte, 12)
	frame.Iterate(func(_, _ int, s Sample) bool {
		pt := s.Point
		if !s.Valid {
			pt = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
		}
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pt.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pt.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pt.Z)))
			_, err = out.Write(buf)
		default:
			_, err = fmt.Fprintf(out, "%s %s %s\n", formatPCDFloat(pt.X), formatPCDFloat(pt.Y), formatPCDFloat(pt.Z))
		}
		return err == nil
	})
	return err
}

func formatPCDFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	value = strings.TrimSpace(value)
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		if len(tokens) < 3 || tokens[0] != "x" || tokens[1] != "y" || tokens[2] != "z" {
			return errors.Errorf("unsupported pcd fields %s", value)
		}
		header.fields = tokens
	case "SIZE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in SIZE line")
		}
		header.size = make([]int, len(tokens))
		for i, token := range tokens {
			if header.size[i], err = strconv.Atoi(token); err != nil {
				return errors.Errorf("invalid SIZE field %s", token)
			}
		}
		for i := 0; i < 3; i++ {
			if header.size[i] != 4 {
				return errors.Errorf("only 4 byte x y z are supported, got SIZE %s", value)
			}
		}
	case "TYPE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		for i := 0; i < 3; i++ {
			if tokens[i] != "F" {
				return errors.Errorf("only float x y z are supported, got TYPE %s", value)
			}
		}
		header.type_ = tokens
	case "COUNT":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in COUNT line")
		}
		for _, token := range tokens {
			if token != "1" {
				return errors.Errorf("unsupported COUNT field %s", token)
			}
		}
	case "WIDTH":
		if header.width, err = strconv.Atoi(value); err != nil || header.width < 0 {
			return errors.Errorf("invalid WIDTH field %s", value)
		}
	case "HEIGHT":
		if header.height, err = strconv.Atoi(value); err != nil || header.height < 0 {
			return errors.Errorf("invalid HEIGHT field %s", value)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		if header.points, err = strconv.Atoi(value); err != nil {
			return errors.Errorf("invalid POINTS field %s: %s", value, err)
		}
		if header.points != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", header.points, header.width*header.height)
		}
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}
	return nil
}

// ReadPCD reads an organized frame. Only the x y z fields are kept; extra fields are skipped.
// NaN points become invalid samples.
func ReadPCD(inRaw io.Reader) (*Frame, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Errorf("error reading header line %d: %s", headerLineCount, err)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.New("compressed pcd not yet supported")
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (*Frame, error) {
	frame := NewFrame(header.width, header.height)
	for i := 0; i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != len(header.fields) {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		var xyz [3]float64
		for j := range xyz {
			if xyz[j], err = strconv.ParseFloat(tokens[j], 64); err != nil {
				return nil, errors.Errorf("invalid point %d field %s: %s", i, tokens[j], err)
			}
		}
		frame.Set(i%header.width, i/header.width, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return frame, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (*Frame, error) {
	stride := 0
	for _, s := range header.size {
		stride += s
	}
	frame := NewFrame(header.width, header.height)
	buf := make([]byte, stride)
	for i := 0; i < header.points; i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		pt := r3.Vector{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))),
		}
		frame.Set(i%header.width, i/header.width, pt)
	}
	return frame, nil
}
