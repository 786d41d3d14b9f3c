package dicomutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Standard transfer syntax and SOP class UIDs used across the pipeline.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

	VerificationSOPClass    = "1.2.840.10008.1.1"
	CTImageStorage          = "1.2.840.10008.5.1.4.1.1.2"
	MRImageStorage          = "1.2.840.10008.5.1.4.1.1.4"
	UltrasoundImageStorage  = "1.2.840.10008.5.1.4.1.1.6.1"
	SecondaryCaptureStorage = "1.2.840.10008.5.1.4.1.1.7"
)

// Identity written into the file meta group of reconstructed streams.
const (
	implementationClassUID = "1.2.826.0.1.3680043.10.1336.1"
	implementationVersion  = "PIXIEVEIL_010"
)

const preambleLength = 128

var dicmMagic = []byte("DICM")

// HasPreamble reports whether data already starts with a DICOM file preamble.
func HasPreamble(data []byte) bool {
	return len(data) >= preambleLength+4 &&
		bytes.Equal(data[preambleLength:preambleLength+4], dicmMagic)
}

// EncodeFileStream turns a raw dataset received over the network into a DICOM
// file stream. Most modalities deliver the bare dataset negotiated for the
// presentation context; the preamble, magic and file meta group are
// synthesised around it. Payloads that already carry a preamble are returned
// unchanged.
func EncodeFileStream(transferSyntaxUID, sopClassUID, sopInstanceUID string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty dataset payload")
	}
	if HasPreamble(data) {
		return data, nil
	}
	for _, uid := range []string{transferSyntaxUID, sopClassUID, sopInstanceUID} {
		if uid == "" {
			return nil, fmt.Errorf("incomplete file meta information")
		}
		if len(uid) > 64 {
			return nil, fmt.Errorf("uid exceeds 64 characters: %q", uid)
		}
	}

	// File meta elements are always explicit VR little endian, regardless of
	// the transfer syntax of the dataset that follows.
	var meta bytes.Buffer
	writeMetaOB(&meta, 0x0001, []byte{0x00, 0x01})
	writeMetaUI(&meta, 0x0002, sopClassUID)
	writeMetaUI(&meta, 0x0003, sopInstanceUID)
	writeMetaUI(&meta, 0x0010, transferSyntaxUID)
	writeMetaUI(&meta, 0x0012, implementationClassUID)
	writeMetaSH(&meta, 0x0013, implementationVersion)

	out := bytes.NewBuffer(make([]byte, 0, preambleLength+4+12+meta.Len()+len(data)))
	out.Write(make([]byte, preambleLength))
	out.Write(dicmMagic)
	writeMetaUL(out, 0x0000, uint32(meta.Len()))
	out.Write(meta.Bytes())
	out.Write(data)
	return out.Bytes(), nil
}

// StripFileMeta removes the preamble, magic and file meta group from a file
// stream, leaving the bare dataset as it would travel over the network.
func StripFileMeta(data []byte) ([]byte, error) {
	if !HasPreamble(data) {
		return nil, fmt.Errorf("stream has no file preamble")
	}
	offset := preambleLength + 4
	if len(data) < offset+12 {
		return nil, fmt.Errorf("truncated file meta group")
	}
	// The first meta element must be the group length (0002,0000) UL.
	if binary.LittleEndian.Uint16(data[offset:]) != 0x0002 ||
		binary.LittleEndian.Uint16(data[offset+2:]) != 0x0000 ||
		string(data[offset+4:offset+6]) != "UL" {
		return nil, fmt.Errorf("file meta group length element missing")
	}
	groupLen := binary.LittleEndian.Uint32(data[offset+8:])
	start := offset + 12 + int(groupLen)
	if start > len(data) {
		return nil, fmt.Errorf("file meta group length %d exceeds stream", groupLen)
	}
	return data[start:], nil
}

func writeTagAndVR(w *bytes.Buffer, element uint16, vr string) {
	_ = binary.Write(w, binary.LittleEndian, uint16(0x0002))
	_ = binary.Write(w, binary.LittleEndian, element)
	w.WriteString(vr)
}

func writeMetaUI(w *bytes.Buffer, element uint16, value string) {
	padded := []byte(value)
	if len(padded)%2 != 0 {
		padded = append(padded, 0x00)
	}
	writeTagAndVR(w, element, "UI")
	_ = binary.Write(w, binary.LittleEndian, uint16(len(padded)))
	w.Write(padded)
}

func writeMetaSH(w *bytes.Buffer, element uint16, value string) {
	padded := []byte(value)
	if len(padded)%2 != 0 {
		padded = append(padded, ' ')
	}
	writeTagAndVR(w, element, "SH")
	_ = binary.Write(w, binary.LittleEndian, uint16(len(padded)))
	w.Write(padded)
}

func writeMetaUL(w *bytes.Buffer, element uint16, value uint32) {
	writeTagAndVR(w, element, "UL")
	_ = binary.Write(w, binary.LittleEndian, uint16(4))
	_ = binary.Write(w, binary.LittleEndian, value)
}

// writeMetaOB writes an even-length OB element using the long header form.
func writeMetaOB(w *bytes.Buffer, element uint16, value []byte) {
	writeTagAndVR(w, element, "OB")
	w.Write([]byte{0x00, 0x00})
	_ = binary.Write(w, binary.LittleEndian, uint32(len(value)))
	w.Write(value)
}
