package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/internal/ml"
)

var (
	ErrFormat   = errors.New("storage: unsupported network format")
	ErrChecksum = errors.New("storage: network checksum mismatch")
)

const (
	maxLayers       = 64
	maxNeurons      = 1 << 16
	maxLayerWeights = 1 << 24
	maxNameLen      = 64
)

type Topology struct {
	Inputs        uint32
	Outputs       uint32
	HiddenNeurons []uint32
}

func (t *Topology) LayerSize() int {
	return len(t.HiddenNeurons) + 1
}

// Sizes returns inputs, hidden sizes and outputs in order.
func (t *Topology) Sizes() []int {
	var res = make([]int, 0, len(t.HiddenNeurons)+2)
	res = append(res, int(t.Inputs))
	for _, h := range t.HiddenNeurons {
		res = append(res, int(h))
	}
	return append(res, int(t.Outputs))
}

// Network is a fully connected network: hidden layers share Activation,
// the output layer is interpreted by the caller.
type Network struct {
	Id         uint32
	Topology   Topology
	Activation string
	Weights    []ml.Matrix
	Biases     []ml.Matrix
}

// Binary layout of the network file:
// - 4 bytes magic/version: 66 ('B'), 90 ('Z'), 3, 0
// - 1 byte codec of the body (see compress.Type)
// - 8 bytes xxhash64 of the uncompressed body
// - body, compressed with the codec:
//   - network ID, inputs, outputs, number of hidden layers, size of each hidden layer (uint32)
//   - activation name length (uint32) and name
//   - for every layer weights then biases, column-major float64
//
// All numbers are little-endian.
func (n *Network) Write(w io.Writer, codecType compress.Type) error {
	var body bytes.Buffer
	var le = binary.LittleEndian
	var put32 = func(v uint32) {
		var buf [4]byte
		le.PutUint32(buf[:], v)
		body.Write(buf[:])
	}
	put32(n.Id)
	put32(n.Topology.Inputs)
	put32(n.Topology.Outputs)
	put32(uint32(len(n.Topology.HiddenNeurons)))
	for _, h := range n.Topology.HiddenNeurons {
		put32(h)
	}
	put32(uint32(len(n.Activation)))
	body.WriteString(n.Activation)
	for i := 0; i < n.Topology.LayerSize(); i++ {
		writeSlice(&body, n.Weights[i].Data)
		writeSlice(&body, n.Biases[i].Data)
	}

	codec, err := compress.Get(codecType)
	if err != nil {
		return err
	}
	compressed, err := codec.Compress(body.Bytes())
	if err != nil {
		return errors.Wrap(err, "compress network")
	}

	var header = make([]byte, 13)
	copy(header, []byte{66, 90, 3, 0})
	header[4] = byte(codecType)
	le.PutUint64(header[5:], xxhash.Sum64(body.Bytes()))
	if _, err = w.Write(header); err != nil {
		return errors.Wrap(err, "write network header")
	}
	if _, err = w.Write(compressed); err != nil {
		return errors.Wrap(err, "write network body")
	}
	return nil
}

func ReadNetwork(r io.Reader) (*Network, error) {
	var header = make([]byte, 13)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "read network header")
	}
	if header[0] != 66 || header[1] != 90 {
		return nil, errors.Wrap(ErrFormat, "magic word does not match")
	}
	if header[2] != 3 || header[3] != 0 {
		return nil, errors.Wrapf(ErrFormat, "version %v.%v", header[2], header[3])
	}
	codec, err := compress.Get(compress.Type(header[4]))
	if err != nil {
		return nil, err
	}
	var checksum = binary.LittleEndian.Uint64(header[5:])

	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read network body")
	}
	body, err := codec.Decompress(compressed)
	if err != nil {
		return nil, errors.Wrap(err, "decompress network")
	}
	if xxhash.Sum64(body) != checksum {
		return nil, ErrChecksum
	}
	return decodeBody(bytes.NewReader(body))
}

func decodeBody(r io.Reader) (*Network, error) {
	var buf = make([]byte, 4)
	var get32 = func() (uint32, error) {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, errors.Wrap(ErrFormat, "truncated body")
		}
		return binary.LittleEndian.Uint32(buf), nil
	}

	var n = &Network{}
	var fields = []*uint32{&n.Id, &n.Topology.Inputs, &n.Topology.Outputs}
	for _, f := range fields {
		v, err := get32()
		if err != nil {
			return nil, err
		}
		*f = v
	}
	if n.Topology.Inputs == 0 || n.Topology.Inputs > maxNeurons ||
		n.Topology.Outputs == 0 || n.Topology.Outputs > maxNeurons {
		return nil, errors.Wrapf(ErrFormat, "%v inputs, %v outputs", n.Topology.Inputs, n.Topology.Outputs)
	}
	layers, err := get32()
	if err != nil {
		return nil, err
	}
	if layers > maxLayers {
		return nil, errors.Wrapf(ErrFormat, "%v hidden layers", layers)
	}
	n.Topology.HiddenNeurons = make([]uint32, layers)
	for i := range n.Topology.HiddenNeurons {
		if n.Topology.HiddenNeurons[i], err = get32(); err != nil {
			return nil, err
		}
		if h := n.Topology.HiddenNeurons[i]; h == 0 || h > maxNeurons {
			return nil, errors.Wrapf(ErrFormat, "hidden layer of %v neurons", h)
		}
	}
	nameLen, err := get32()
	if err != nil {
		return nil, err
	}
	if nameLen > maxNameLen {
		return nil, errors.Wrapf(ErrFormat, "activation name of %v bytes", nameLen)
	}
	var name = make([]byte, nameLen)
	if _, err = io.ReadFull(r, name); err != nil {
		return nil, errors.Wrap(ErrFormat, "truncated activation name")
	}
	n.Activation = string(name)

	var sizes = n.Topology.Sizes()
	n.Weights = make([]ml.Matrix, n.Topology.LayerSize())
	n.Biases = make([]ml.Matrix, n.Topology.LayerSize())
	for i := range n.Weights {
		var inputSize, outputSize = sizes[i], sizes[i+1]
		if inputSize*outputSize > maxLayerWeights {
			return nil, errors.Wrapf(ErrFormat, "layer %v has %vx%v weights", i, outputSize, inputSize)
		}
		n.Weights[i] = ml.NewMatrix(outputSize, inputSize)
		if err = readSlice(r, n.Weights[i].Data); err != nil {
			return nil, err
		}
		n.Biases[i] = ml.NewMatrix(outputSize, 1)
		if err = readSlice(r, n.Biases[i].Data); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Network) Save(path string, codecType compress.Type) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create network file")
	}
	defer f.Close()
	if err = n.Write(f, codecType); err != nil {
		return err
	}
	return errors.Wrap(f.Close(), "close network file")
}

func LoadNetwork(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open network file")
	}
	defer f.Close()
	return ReadNetwork(f)
}

func writeSlice(w *bytes.Buffer, data []float64) {
	var buf [8]byte
	for _, x := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		w.Write(buf[:])
	}
}

func readSlice(r io.Reader, data []float64) error {
	var buf = make([]byte, 8)
	for j := range data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return errors.Wrap(ErrFormat, "truncated weights")
		}
		data[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return nil
}
