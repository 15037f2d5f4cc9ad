package gogan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// SaveNetwork Writes pre-learned parameters of every layer to provided directory
// as npy files named layer_{i}_weight.npy / layer_{i}_bias.npy
func SaveNetwork(net *Network, dir string) error {
	if net == nil {
		return fmt.Errorf("Network is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "Can't prepare directory for pre-learned parameters")
	}
	for i, l := range net.Layers {
		if l == nil {
			continue
		}
		if l.WeightNode != nil {
			if err := saveNode(l.WeightNode, filepath.Join(dir, fmt.Sprintf("layer_%d_weight.npy", i))); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't save weights of layer #%d", i))
			}
		}
		if l.BiasNode != nil {
			if err := saveNode(l.BiasNode, filepath.Join(dir, fmt.Sprintf("layer_%d_bias.npy", i))); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't save bias of layer #%d", i))
			}
		}
	}
	return nil
}

// LoadNetwork Applies pre-learned parameters stored by SaveNetwork onto an
// existing network definition. Shapes of stored denses must match node shapes.
func LoadNetwork(net *Network, dir string) error {
	if net == nil {
		return fmt.Errorf("Network is nil")
	}
	for i, l := range net.Layers {
		if l == nil {
			continue
		}
		if l.WeightNode != nil {
			if err := loadNode(l.WeightNode, filepath.Join(dir, fmt.Sprintf("layer_%d_weight.npy", i))); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't load weights of layer #%d", i))
			}
		}
		if l.BiasNode != nil {
			if err := loadNode(l.BiasNode, filepath.Join(dir, fmt.Sprintf("layer_%d_bias.npy", i))); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't load bias of layer #%d", i))
			}
		}
	}
	return nil
}

func saveNode(n *gorgonia.Node, fname string) error {
	val := n.Value()
	if val == nil {
		return fmt.Errorf("Node '%s' has no value", n.Name())
	}
	d, ok := val.(*tensor.Dense)
	if !ok {
		return fmt.Errorf("Node '%s' value is not a dense, but %T", n.Name(), val)
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer f.Close()
	if err := d.WriteNpy(f); err != nil {
		return errors.Wrap(err, "Can't write npy data")
	}
	return nil
}

func loadNode(n *gorgonia.Node, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return errors.Wrap(err, "Can't open file")
	}
	defer f.Close()
	d := new(tensor.Dense)
	if err := d.ReadNpy(f); err != nil {
		return errors.Wrap(err, "Can't read npy data")
	}
	if !d.Shape().Eq(n.Shape()) {
		return fmt.Errorf("Stored dense has shape %v, but node '%s' has shape %v", d.Shape(), n.Name(), n.Shape())
	}
	if err := gorgonia.Let(n, d); err != nil {
		return errors.Wrap(err, "Can't bind stored dense to node")
	}
	return nil
}
