package mupdf

import (
	"bytes"
	"fmt"
)

// probeDocument builds a one-page blank PDF with a correct xref table.
func probeDocument() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	var offsets []int
	addObj := func(s string) {
		offsets = append(offsets, b.Len())
		b.WriteString(s)
	}
	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	addObj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	addObj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >>\nendobj\n")
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(offsets)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xref)
	return b.Bytes()
}

// Probe opens a tiny built-in document, verifying the MuPDF stack is
// usable in this process. Health endpoints call it.
func Probe() error {
	r, err := Open(probeDocument())
	if err != nil {
		return err
	}
	return r.Close()
}
