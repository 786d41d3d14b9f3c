package forge

import (
	"fmt"
	"math/rand/v2"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/pixieveil/internal/dicomutil"
)

// mustNewPrivateElement creates a private or repeating-group element and
// panics on error. Inputs are static.
func mustNewPrivateElement(t tag.Tag, rawVR string, data any) *dicom.Element {
	elem, err := dicomutil.NewPrivateElement(t, rawVR, data)
	if err != nil {
		panic(fmt.Sprintf("failed to create private element for tag %v: %v", t, err))
	}
	return elem
}

// vendorPrivateElements returns a GE-style private block: creator
// identifiers plus a software version and multi-valued scan parameters.
func vendorPrivateElements(rng *rand.Rand) []*dicom.Element {
	version := fmt.Sprintf("DV%d.%d_V%02d", 24+rng.IntN(4), rng.IntN(10), rng.IntN(100))
	params := make([]string, 4)
	for i := range params {
		params[i] = fmt.Sprintf("%d", rng.IntN(1000))
	}
	return []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x0009, Element: 0x0010}, "LO", []string{"GEMS_IDEN_01"}),
		mustNewPrivateElement(tag.Tag{Group: 0x0009, Element: 0x10E3}, "LO", []string{version}),
		mustNewPrivateElement(tag.Tag{Group: 0x0043, Element: 0x0010}, "LO", []string{"GEMS_PARM_01"}),
		mustNewPrivateElement(tag.Tag{Group: 0x0043, Element: 0x1039}, "IS", params),
	}
}

// overlayElements returns a minimal graphics overlay plane in group 0x6000.
func overlayElements(rows, cols int) []*dicom.Element {
	bits := make([]byte, (rows*cols+7)/8)
	for i := 0; i < len(bits); i += 2 {
		bits[i] = 0xAA
	}
	if len(bits)%2 != 0 {
		bits = append(bits, 0x00)
	}
	return []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0010}, "US", []int{rows}),
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0011}, "US", []int{cols}),
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0040}, "CS", []string{"G"}),
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0050}, "SS", []int{1, 1}),
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0100}, "US", []int{1}),
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0102}, "US", []int{0}),
		mustNewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x3000}, "OW", bits),
	}
}
