package render

type elementFlag uint8

const (
	// flagVoid elements have no closing tag and no children.
	flagVoid elementFlag = 1 << iota
	// flagInline elements stay on their parent's line when pretty printing.
	flagInline
)

// elements lists the tags serialized differently from a block element.
// Form controls are inline so a label and its input share a line.
var elements = map[string]elementFlag{
	"area":   flagVoid,
	"base":   flagVoid,
	"col":    flagVoid,
	"embed":  flagVoid,
	"hr":     flagVoid,
	"link":   flagVoid,
	"meta":   flagVoid,
	"param":  flagVoid,
	"source": flagVoid,
	"track":  flagVoid,

	"br":    flagVoid | flagInline,
	"img":   flagVoid | flagInline,
	"input": flagVoid | flagInline,
	"wbr":   flagVoid | flagInline,

	"a": flagInline, "abbr": flagInline, "b": flagInline, "bdi": flagInline,
	"bdo": flagInline, "button": flagInline, "cite": flagInline, "code": flagInline,
	"data": flagInline, "dfn": flagInline, "em": flagInline, "i": flagInline,
	"kbd": flagInline, "label": flagInline, "mark": flagInline, "q": flagInline,
	"s": flagInline, "samp": flagInline, "select": flagInline, "small": flagInline,
	"span": flagInline, "strong": flagInline, "sub": flagInline, "sup": flagInline,
	"textarea": flagInline, "time": flagInline, "u": flagInline, "var": flagInline,
}

func isVoidElement(tag string) bool {
	return elements[tag]&flagVoid != 0
}

func isInlineElement(tag string) bool {
	return elements[tag]&flagInline != 0
}
