package overlay

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// fontResourcePrefix keeps overlay font names clear of the template's own
const fontResourcePrefix = "OvlF"

// document is one in-memory copy of a template being overlaid
type document struct {
	ctx   *model.Context
	fonts map[Font]types.IndirectRef
}

// openDocument parses template bytes. Failures are malformed-document errors.
func openDocument(data []byte) (*document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedDocument, err).
			WithContext("failed to read PDF context")
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedDocument, err).
			WithContext("failed to ensure page count")
	}

	return &document{
		ctx:   ctx,
		fonts: make(map[Font]types.IndirectRef),
	}, nil
}

// PageCount parses a template and returns its number of pages
func PageCount(data []byte) (int, error) {
	doc, err := openDocument(data)
	if err != nil {
		return 0, err
	}
	return doc.pageCount(), nil
}

func (d *document) pageCount() int {
	return d.ctx.PageCount
}

// fontRef returns the shared font dictionary for f, creating it on first use
func (d *document) fontRef(f Font) (types.IndirectRef, error) {
	if ref, ok := d.fonts[f]; ok {
		return ref, nil
	}

	fontDict := types.Dict(map[string]types.Object{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(f.BaseFont()),
	})
	if f != FontDingbats {
		fontDict["Encoding"] = types.Name("WinAnsiEncoding")
	}

	ref, err := d.ctx.IndRefForNewObject(fontDict)
	if err != nil {
		return types.IndirectRef{}, fmt.Errorf("failed to add font %s: %w", f.BaseFont(), err)
	}
	d.fonts[f] = *ref
	return *ref, nil
}

// newStream adds a Flate-compressed content stream object
func (d *document) newStream(content []byte) (types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return types.IndirectRef{}, err
	}
	if err := sd.Encode(); err != nil {
		return types.IndirectRef{}, err
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, err
	}
	return *ref, nil
}

// overlayPage draws runs on top of page pageNr (1-based). The page's
// existing content is wrapped in q/Q so any graphics state it leaves behind
// cannot move or recolor the overlay.
func (d *document) overlayPage(pageNr int, runs []TextRun) error {
	pageDict, _, inherited, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return fmt.Errorf("failed to get page %d: %w", pageNr, err)
	}
	if pageDict == nil {
		return fmt.Errorf("page %d not found", pageNr)
	}

	names, err := d.addFontResources(pageDict, inherited, runs)
	if err != nil {
		return fmt.Errorf("page %d resources: %w", pageNr, err)
	}

	content := encodeRuns(runs, names)

	existing, hasContent := pageDict.Find("Contents")
	if !hasContent || existing == nil {
		ref, err := d.newStream(content)
		if err != nil {
			return fmt.Errorf("page %d content: %w", pageNr, err)
		}
		pageDict["Contents"] = ref
		return nil
	}

	saveRef, err := d.newStream([]byte("q\n"))
	if err != nil {
		return fmt.Errorf("page %d content: %w", pageNr, err)
	}
	overlayRef, err := d.newStream(append([]byte("Q\n"), content...))
	if err != nil {
		return fmt.Errorf("page %d content: %w", pageNr, err)
	}

	contents := types.Array{saveRef}
	switch obj := existing.(type) {
	case types.Array:
		contents = append(contents, obj...)
	case types.IndirectRef:
		resolved, err := d.ctx.Dereference(obj)
		if err != nil {
			return fmt.Errorf("page %d content: %w", pageNr, err)
		}
		if arr, ok := resolved.(types.Array); ok {
			contents = append(contents, arr...)
		} else {
			contents = append(contents, obj)
		}
	default:
		contents = append(contents, obj)
	}
	contents = append(contents, overlayRef)

	pageDict["Contents"] = contents
	return nil
}

// addFontResources gives the page its own Resources dictionary holding the
// overlay fonts. Resources inherited from the page tree are copied in first,
// since a page-level dictionary replaces rather than extends them.
func (d *document) addFontResources(pageDict types.Dict, inherited *model.InheritedPageAttrs, runs []TextRun) (fontResources, error) {
	resources := types.NewDict()
	if obj, found := pageDict.Find("Resources"); found {
		res, err := d.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, err
		}
		if res != nil {
			resources = res.Clone().(types.Dict)
		}
	} else if inherited != nil && inherited.Resources != nil {
		resources = inherited.Resources.Clone().(types.Dict)
	}

	fontDict := types.NewDict()
	if obj, found := resources.Find("Font"); found {
		fonts, err := d.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, err
		}
		if fonts != nil {
			fontDict = fonts.Clone().(types.Dict)
		}
	}

	names := make(fontResources)
	for _, r := range runs {
		if _, done := names[r.Font]; done {
			continue
		}
		ref, err := d.fontRef(r.Font)
		if err != nil {
			return nil, err
		}
		name := uniqueResourceName(fontDict, fmt.Sprintf("%s%d", fontResourcePrefix, int(r.Font)+1))
		fontDict[name] = ref
		names[r.Font] = name
	}

	resources["Font"] = fontDict
	pageDict["Resources"] = resources
	return names, nil
}

func uniqueResourceName(dict types.Dict, base string) string {
	name := base
	for i := 1; ; i++ {
		if _, taken := dict[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// bytes serializes the document
func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRender, err).WithContext("failed to write PDF")
	}
	return buf.Bytes(), nil
}
