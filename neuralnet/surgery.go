package neuralnet

import (
	"fmt"
	"strconv"

	"gorgonia.org/tensor"
)

// Expand returns a network with k mixture components whose density is
// the same as that of net, which must have a single component. Every
// component's mean and precision block is a copy of the block of the
// only component of net. Parameters which do not depend on the number
// of components are copied from net; the mixing logits are freshly
// initialized, which leaves the density unchanged since all components
// are equal.
//
// net is not modified and the returned network shares no memory with
// it.
func Expand(net Network, k int) (Network, error) {
	if k < 2 {
		return Network{}, fmt.Errorf("expand: expected k > 1 but got %v", k)
	}
	if net.spec.NComponents != 1 {
		return Network{}, fmt.Errorf("expand: network with %v components: %w",
			net.spec.NComponents, ErrNotSingleComponent)
	}

	spec := net.spec.clone()
	spec.NComponents = k
	fresh, err := New(spec)
	if err != nil {
		return Network{}, fmt.Errorf("expand: %v", err)
	}

	values := make(map[string]*tensor.Dense, fresh.params.Len())
	for _, name := range fresh.params.Names() {
		source := name
		if stem, _, ok := componentParam(name); ok {
			source = stem + strconv.Itoa(0)
		}

		if v, ok := sameShape(net.params, fresh.params, source, name); ok {
			values[name] = v
			continue
		}

		// Mixing logits depend on k
		v, _ := fresh.params.Get(name)
		values[name] = v
	}

	return FromParams(spec, NewParams(values))
}

// sameShape returns a copy of the parameter src of old if it has the
// same shape as the parameter dst of fresh
func sameShape(old, fresh Params, src, dst string) (*tensor.Dense, bool) {
	oldShape, ok := old.Shape(src)
	if !ok {
		return nil, false
	}
	freshShape, _ := fresh.Shape(dst)
	if !oldShape.Eq(freshShape) {
		return nil, false
	}
	return old.Get(src)
}
