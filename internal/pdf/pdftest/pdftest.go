// Package pdftest builds small, well-formed PDF templates for tests.
package pdftest

import (
	"fmt"
	"strings"
)

// Letter is the US Letter media box used for every generated page
const Letter = "[0 0 612 792]"

// Options controls the shape of a generated template
type Options struct {
	// Content, when set, becomes every page's existing content stream
	Content string

	// InheritResources moves the page resources up to the page tree node
	InheritResources bool
}

// MinimalPDF returns a blank document with the given number of pages
func MinimalPDF(pages int) []byte {
	return Build(pages, Options{})
}

// Build returns a document with accurate cross-reference offsets
func Build(pages int, opts Options) []byte {
	var objects []string

	firstPage := 3
	firstContent := firstPage + pages

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+i)
	}

	objects = append(objects, "<<\n/Type /Catalog\n/Pages 2 0 R\n>>")

	pagesDict := fmt.Sprintf("<<\n/Type /Pages\n/Kids [%s]\n/Count %d\n/MediaBox %s\n",
		strings.Join(kids, " "), pages, Letter)
	if opts.InheritResources {
		pagesDict += "/Resources << /ProcSet [/PDF /Text] >>\n"
	}
	objects = append(objects, pagesDict+">>")

	for i := 0; i < pages; i++ {
		page := "<<\n/Type /Page\n/Parent 2 0 R\n"
		if !opts.InheritResources {
			page += "/Resources << >>\n"
		}
		if opts.Content != "" {
			page += fmt.Sprintf("/Contents %d 0 R\n", firstContent+i)
		}
		objects = append(objects, page+">>")
	}

	if opts.Content != "" {
		for i := 0; i < pages; i++ {
			objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream",
				len(opts.Content), opts.Content))
		}
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return []byte(b.String())
}
