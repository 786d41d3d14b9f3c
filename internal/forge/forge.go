// Package forge generates synthetic DICOM studies for exercising the
// ingestion pipeline: realistic metadata, native pixel data, optional
// burned-in annotations, private vendor blocks and overlay planes.
package forge

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/pixieveil/internal/dicomutil"
)

// Options shapes one generated image. Zero values resolve to deterministic
// defaults derived from Seed.
type Options struct {
	Modality          string // CT, MR, US or SC; default CT
	StudyUID          string
	SeriesUID         string
	SOPInstanceUID    string
	PatientName       string
	PatientID         string
	AccessionNumber   string
	StudyDescription  string
	SeriesDescription string
	BodyPart          string
	ImageType         []string
	SeriesNumber      int
	InstanceNumber    int
	Rows              int
	Columns           int
	Seed              uint64
	BurnedInText      string // drawn into the pixel data when non-empty
	IncludePrivate    bool   // add a GE-style private vendor block
	IncludeOverlay    bool   // add a graphics overlay plane in group 0x6000

	// OmitSOPInstanceUID produces a dataset that fails ingest validation.
	OmitSOPInstanceUID bool

	TransferSyntaxUID string
}

// Image is one generated instance, ready to be rendered as a file stream or
// a bare network dataset.
type Image struct {
	Options Options
	Dataset dicom.Dataset

	writeOpts []dicom.WriteOption
}

const uidRoot = "1.2.826.0.1.3680043.10.1336"

// DeterministicUID derives a stable UID from name, so repeated runs forge
// identical identifiers.
func DeterministicUID(name string) string {
	return fmt.Sprintf("%s.%d", uidRoot, hash64(name))
}

func hash64(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// New assembles one synthetic image from opts.
func New(opts Options) (*Image, error) {
	if opts.Modality == "" {
		opts.Modality = "CT"
	}
	p, err := modalityFor(opts.Modality)
	if err != nil {
		return nil, err
	}
	if opts.Rows == 0 {
		opts.Rows = 64
	}
	if opts.Columns == 0 {
		opts.Columns = 64
	}
	if opts.SeriesNumber == 0 {
		opts.SeriesNumber = 1
	}
	if opts.InstanceNumber == 0 {
		opts.InstanceNumber = 1
	}
	if opts.TransferSyntaxUID == "" {
		opts.TransferSyntaxUID = dicomutil.ExplicitVRLittleEndian
	}
	if opts.StudyUID == "" {
		opts.StudyUID = DeterministicUID(fmt.Sprintf("study_%d", opts.Seed))
	}
	if opts.SeriesUID == "" {
		opts.SeriesUID = DeterministicUID(fmt.Sprintf("study_%d_series_%d", opts.Seed, opts.SeriesNumber))
	}
	if opts.SOPInstanceUID == "" {
		opts.SOPInstanceUID = DeterministicUID(fmt.Sprintf("study_%d_series_%d_instance_%d", opts.Seed, opts.SeriesNumber, opts.InstanceNumber))
	}

	// Patient and study level fields derive from the study UID so every
	// image of a study carries the same demographics.
	rng := rand.New(rand.NewPCG(hash64(opts.StudyUID), 42))
	identity := newIdentity(rng)
	if opts.PatientName == "" {
		opts.PatientName = identity.Name
	}
	if opts.PatientID == "" {
		opts.PatientID = identity.ID
	}
	if opts.AccessionNumber == "" {
		opts.AccessionNumber = fmt.Sprintf("ACC%07d", rng.IntN(10000000))
	}
	if opts.StudyDescription == "" {
		opts.StudyDescription = fmt.Sprintf("%s %s", opts.Modality, p.bodyPart)
	}
	if opts.SeriesDescription == "" {
		opts.SeriesDescription = fmt.Sprintf("Series %d - %s", opts.SeriesNumber, opts.Modality)
	}
	if opts.BodyPart == "" {
		opts.BodyPart = p.bodyPart
	}
	if len(opts.ImageType) == 0 {
		opts.ImageType = p.imageType
	}

	elements := []*dicom.Element{
		dicomutil.MustNewElement(tag.TransferSyntaxUID, []string{opts.TransferSyntaxUID}),
		dicomutil.MustNewElement(tag.PatientName, []string{opts.PatientName}),
		dicomutil.MustNewElement(tag.PatientID, []string{opts.PatientID}),
		dicomutil.MustNewElement(tag.PatientBirthDate, []string{identity.BirthDate}),
		dicomutil.MustNewElement(tag.PatientSex, []string{identity.Sex}),
		dicomutil.MustNewElement(tag.StudyInstanceUID, []string{opts.StudyUID}),
		dicomutil.MustNewElement(tag.StudyID, []string{fmt.Sprintf("%d", 1+rng.IntN(9999))}),
		dicomutil.MustNewElement(tag.StudyDate, []string{"20240115"}),
		dicomutil.MustNewElement(tag.StudyTime, []string{"083000"}),
		dicomutil.MustNewElement(tag.StudyDescription, []string{opts.StudyDescription}),
		dicomutil.MustNewElement(tag.AccessionNumber, []string{opts.AccessionNumber}),
		dicomutil.MustNewElement(tag.SeriesInstanceUID, []string{opts.SeriesUID}),
		dicomutil.MustNewElement(tag.SeriesNumber, []string{fmt.Sprintf("%d", opts.SeriesNumber)}),
		dicomutil.MustNewElement(tag.SeriesDescription, []string{opts.SeriesDescription}),
		dicomutil.MustNewElement(tag.Modality, []string{opts.Modality}),
		dicomutil.MustNewElement(tag.SOPClassUID, []string{p.sopClassUID}),
		dicomutil.MustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", opts.InstanceNumber)}),
		dicomutil.MustNewElement(tag.ImageType, opts.ImageType),
		dicomutil.MustNewElement(tag.BodyPartExamined, []string{opts.BodyPart}),
		dicomutil.MustNewElement(tag.InstitutionName, []string{"SAINT MARY GENERAL"}),
		dicomutil.MustNewElement(tag.ReferringPhysicianName, []string{"HOUSE^GREGORY"}),
		dicomutil.MustNewElement(tag.Manufacturer, []string{"SIEMENS"}),
		dicomutil.MustNewElement(tag.ManufacturerModelName, []string{"SOMATOM Definition AS+"}),
		dicomutil.MustNewElement(tag.FrameOfReferenceUID, []string{DeterministicUID(fmt.Sprintf("study_%d_frame", opts.Seed))}),
		dicomutil.MustNewElement(tag.Rows, []int{opts.Rows}),
		dicomutil.MustNewElement(tag.Columns, []int{opts.Columns}),
		dicomutil.MustNewElement(tag.BitsAllocated, []int{p.bitsAllocated}),
		dicomutil.MustNewElement(tag.BitsStored, []int{p.bitsStored}),
		dicomutil.MustNewElement(tag.HighBit, []int{p.highBit}),
		dicomutil.MustNewElement(tag.PixelRepresentation, []int{0}),
		dicomutil.MustNewElement(tag.SamplesPerPixel, []int{1}),
		dicomutil.MustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		dicomutil.MustNewElement(tag.WindowCenter, []string{fmt.Sprintf("%.1f", p.windowCenter)}),
		dicomutil.MustNewElement(tag.WindowWidth, []string{fmt.Sprintf("%.1f", p.windowWidth)}),
	}
	if !opts.OmitSOPInstanceUID {
		elements = append(elements, dicomutil.MustNewElement(tag.SOPInstanceUID, []string{opts.SOPInstanceUID}))
	}
	if p.extra != nil {
		elements = append(elements, p.extra(rng)...)
	}

	var writeOpts []dicom.WriteOption
	if opts.IncludePrivate {
		elements = append(elements, vendorPrivateElements(rng)...)
	}
	if opts.IncludeOverlay {
		elements = append(elements, overlayElements(opts.Rows, opts.Columns)...)
	}
	if opts.IncludePrivate || opts.IncludeOverlay {
		writeOpts = []dicom.WriteOption{dicom.SkipVRVerification(), dicom.SkipValueTypeVerification()}
	}

	elements = append(elements, dicomutil.MustNewElement(tag.PixelData,
		newPixelData(p, opts.Rows, opts.Columns, opts.Seed, opts.BurnedInText)))

	return &Image{
		Options:   opts,
		Dataset:   dicom.Dataset{Elements: elements},
		writeOpts: writeOpts,
	}, nil
}

// FileBytes renders the image as a complete DICOM file stream.
func (img *Image) FileBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := dicom.Write(&buf, img.Dataset, img.writeOpts...); err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return buf.Bytes(), nil
}

// RawPayload renders the dataset without preamble, magic or file meta group,
// the way modalities deliver it inside a C-STORE data set.
func (img *Image) RawPayload() ([]byte, error) {
	data, err := img.FileBytes()
	if err != nil {
		return nil, err
	}
	return dicomutil.StripFileMeta(data)
}

// WriteFile writes the complete file stream to path.
func (img *Image) WriteFile(path string) error {
	data, err := img.FileBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// StudyOptions shapes a multi-series synthetic study.
type StudyOptions struct {
	Modality        string
	Series          int
	ImagesPerSeries int
	Seed            uint64
	BurnedInText    string
	IncludePrivate  bool
}

// NewStudy generates Series x ImagesPerSeries images sharing one study UID
// and one patient.
func NewStudy(opts StudyOptions) ([]*Image, error) {
	if opts.Series <= 0 {
		opts.Series = 1
	}
	if opts.ImagesPerSeries <= 0 {
		opts.ImagesPerSeries = 1
	}

	studyUID := DeterministicUID(fmt.Sprintf("study_%d", opts.Seed))
	images := make([]*Image, 0, opts.Series*opts.ImagesPerSeries)
	for s := 1; s <= opts.Series; s++ {
		seriesUID := DeterministicUID(fmt.Sprintf("study_%d_series_%d", opts.Seed, s))
		for i := 1; i <= opts.ImagesPerSeries; i++ {
			img, err := New(Options{
				Modality:       opts.Modality,
				StudyUID:       studyUID,
				SeriesUID:      seriesUID,
				SeriesNumber:   s,
				InstanceNumber: i,
				Seed:           opts.Seed + uint64(s)*1000 + uint64(i),
				BurnedInText:   opts.BurnedInText,
				IncludePrivate: opts.IncludePrivate,
			})
			if err != nil {
				return nil, err
			}
			images = append(images, img)
		}
	}
	return images, nil
}
