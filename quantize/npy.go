package quantize

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// WriteNPY writes a float32 tensor in the NumPy .npy format, little-endian and C order.
//
// Arguments:
//   - w: Destination.
//   - t: A float32 tensor.
//
// Returns:
//   - error: common.ErrShape for non-float32 data, or the write error.
func WriteNPY(w io.Writer, t *tensor.Dense) error {
	data, ok := t.Data().([]float32)
	if !ok {
		return fmt.Errorf("%w: npy export needs float32, got %v", common.ErrShape, t.Dtype())
	}

	if len(data) == 0 {
		return fmt.Errorf("%w: npy export of an empty tensor", common.ErrShape)
	}

	bw := bufio.NewWriter(w)
	if err := t.WriteNpy(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// SaveNPY writes t to path.
func SaveNPY(path string, t *tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := WriteNPY(f, t); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}
