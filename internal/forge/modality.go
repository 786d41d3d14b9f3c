package forge

import (
	"fmt"
	"math/rand/v2"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/pixieveil/internal/dicomutil"
)

// modalityParams drives the modality-specific parts of a generated image.
type modalityParams struct {
	name          string
	sopClassUID   string
	bitsAllocated int
	bitsStored    int
	highBit       int
	baseValue     int
	valueRange    int
	windowCenter  float64
	windowWidth   float64
	bodyPart      string
	imageType     []string
	extra         func(rng *rand.Rand) []*dicom.Element
}

var modalityTable = map[string]modalityParams{
	"CT": {
		name:          "CT",
		sopClassUID:   dicomutil.CTImageStorage,
		bitsAllocated: 16,
		bitsStored:    12,
		highBit:       11,
		baseValue:     1024,
		valueRange:    2000,
		windowCenter:  40,
		windowWidth:   400,
		bodyPart:      "CHEST",
		imageType:     []string{"ORIGINAL", "PRIMARY", "AXIAL"},
		extra: func(rng *rand.Rand) []*dicom.Element {
			kvp := []string{"80", "100", "120", "140"}[rng.IntN(4)]
			kernel := []string{"SOFT", "STANDARD", "BONE", "LUNG"}[rng.IntN(4)]
			return []*dicom.Element{
				dicomutil.MustNewElement(tag.KVP, []string{kvp}),
				dicomutil.MustNewElement(tag.XRayTubeCurrent, []string{fmt.Sprintf("%d", 100+rng.IntN(301))}),
				dicomutil.MustNewElement(tag.ConvolutionKernel, []string{kernel}),
				dicomutil.MustNewElement(tag.RescaleIntercept, []string{"-1024"}),
				dicomutil.MustNewElement(tag.RescaleSlope, []string{"1"}),
			}
		},
	},
	"MR": {
		name:          "MR",
		sopClassUID:   dicomutil.MRImageStorage,
		bitsAllocated: 16,
		bitsStored:    16,
		highBit:       15,
		baseValue:     500,
		valueRange:    3000,
		windowCenter:  600,
		windowWidth:   1200,
		bodyPart:      "BRAIN",
		imageType:     []string{"ORIGINAL", "PRIMARY"},
		extra: func(rng *rand.Rand) []*dicom.Element {
			strength := []string{"1.5", "3"}[rng.IntN(2)]
			return []*dicom.Element{
				dicomutil.MustNewElement(tag.MagneticFieldStrength, []string{strength}),
				dicomutil.MustNewElement(tag.RepetitionTime, []string{fmt.Sprintf("%d", 400+rng.IntN(2000))}),
				dicomutil.MustNewElement(tag.EchoTime, []string{fmt.Sprintf("%d", 10+rng.IntN(100))}),
			}
		},
	},
	"US": {
		name:          "US",
		sopClassUID:   dicomutil.UltrasoundImageStorage,
		bitsAllocated: 8,
		bitsStored:    8,
		highBit:       7,
		baseValue:     60,
		valueRange:    160,
		windowCenter:  128,
		windowWidth:   256,
		bodyPart:      "ABDOMEN",
		imageType:     []string{"ORIGINAL", "PRIMARY"},
	},
	"SC": {
		name:          "SC",
		sopClassUID:   dicomutil.SecondaryCaptureStorage,
		bitsAllocated: 8,
		bitsStored:    8,
		highBit:       7,
		baseValue:     90,
		valueRange:    120,
		windowCenter:  128,
		windowWidth:   256,
		bodyPart:      "CHEST",
		imageType:     []string{"DERIVED", "SECONDARY"},
	},
}

func modalityFor(name string) (modalityParams, error) {
	p, ok := modalityTable[name]
	if !ok {
		return modalityParams{}, fmt.Errorf("unsupported modality %q (valid: CT, MR, US, SC)", name)
	}
	return p, nil
}
