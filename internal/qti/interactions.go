package qti

// Kind identifies an interaction class. The set is closed: response-capture
// constructs outside it are not exported.
type Kind int

const (
	KindUnknown Kind = iota
	KindAssociate
	KindChoice
	KindDrawing
	KindExtendedText
	KindGapMatch
	KindGraphicAssociate
	KindGraphicGapMatch
	KindGraphicOrder
	KindHotspot
	KindSelectPoint
	KindHottext
	KindMatch
	KindMedia
	KindOrder
	KindSlider
	KindUpload
	KindEndAttempt
	KindInlineChoice
	KindTextEntry
	KindPositionObject
	KindCustom
)

var kindByClass = map[string]Kind{
	"associateInteraction":        KindAssociate,
	"choiceInteraction":           KindChoice,
	"drawingInteraction":          KindDrawing,
	"extendedTextInteraction":     KindExtendedText,
	"gapMatchInteraction":         KindGapMatch,
	"graphicAssociateInteraction": KindGraphicAssociate,
	"graphicGapMatchInteraction":  KindGraphicGapMatch,
	"graphicOrderInteraction":     KindGraphicOrder,
	"hotspotInteraction":          KindHotspot,
	"selectPointInteraction":      KindSelectPoint,
	"hottextInteraction":          KindHottext,
	"matchInteraction":            KindMatch,
	"mediaInteraction":            KindMedia,
	"orderInteraction":            KindOrder,
	"sliderInteraction":           KindSlider,
	"uploadInteraction":           KindUpload,
	"endAttemptInteraction":       KindEndAttempt,
	"inlineChoiceInteraction":     KindInlineChoice,
	"textEntryInteraction":        KindTextEntry,
	"positionObjectInteraction":   KindPositionObject,
	"customInteraction":           KindCustom,
}

var classByKind = func() map[Kind]string {
	m := make(map[Kind]string, len(kindByClass))
	for class, kind := range kindByClass {
		m[kind] = class
	}
	return m
}()

// KindOf maps a qtiClass name to its Kind, or KindUnknown.
func KindOf(class string) Kind {
	return kindByClass[class]
}

func (k Kind) String() string {
	if class, ok := classByKind[k]; ok {
		return class
	}
	return "unknown"
}

// Interactions walks the item tree and returns every recognized interaction,
// grouped by kind and keyed by response identifier. A node only qualifies
// when it declares both a known interaction class and a response identifier;
// anything else is skipped silently.
func Interactions(root *Node) map[Kind]map[string]*Node {
	result := make(map[Kind]map[string]*Node)
	if root == nil {
		return result
	}

	root.Walk(func(n *Node) {
		kind, ok := kindByClass[n.Class]
		if !ok || n.Attributes.ResponseIdentifier == "" {
			return
		}
		if result[kind] == nil {
			result[kind] = make(map[string]*Node)
		}
		result[kind][n.Attributes.ResponseIdentifier] = n
	})
	return result
}
