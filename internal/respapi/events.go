package respapi

// Event is one SSE frame's JSON payload. Only the fields relevant to Type
// are populated; the `event:` line on the wire equals Type verbatim.
type Event struct {
	Type           string          `json:"type"`
	SequenceNumber int             `json:"sequence_number"`
	Response       *Response       `json:"response,omitempty"`
	OutputIndex    *int            `json:"output_index,omitempty"`
	Item           *OutputItem     `json:"item,omitempty"`
	ItemID         string          `json:"item_id,omitempty"`
	ContentIndex   *int            `json:"content_index,omitempty"`
	Part           *OutputTextPart `json:"part,omitempty"`
	Delta          string          `json:"delta,omitempty"`
	Text           string          `json:"text,omitempty"`
	Error          *ErrorDetail    `json:"error,omitempty"`
}

const (
	EventInProgress      = "response.in_progress"
	EventOutputItemAdded = "response.output_item.added"
	EventOutputItemDone  = "response.output_item.done"
	EventContentPartAdd  = "response.content_part.added"
	EventContentPartDone = "response.content_part.done"
	EventOutputTextDelta = "response.output_text.delta"
	EventOutputTextDone  = "response.output_text.done"
	EventCompleted       = "response.completed"
	EventFailed          = "response.failed"
	EventError           = "error"
)

func zeroIndex(i int) *int { return &i }

func InProgressEvent(seq int, resp *Response) Event {
	return Event{Type: EventInProgress, SequenceNumber: seq, Response: resp}
}

func OutputItemAddedEvent(seq, outputIndex int, item OutputItem) Event {
	return Event{Type: EventOutputItemAdded, SequenceNumber: seq, OutputIndex: zeroIndex(outputIndex), Item: &item}
}

func OutputItemDoneEvent(seq, outputIndex int, item OutputItem) Event {
	return Event{Type: EventOutputItemDone, SequenceNumber: seq, OutputIndex: zeroIndex(outputIndex), Item: &item}
}

func ContentPartAddedEvent(seq int, itemID string, outputIndex, contentIndex int, part OutputTextPart) Event {
	return Event{
		Type: EventContentPartAdd, SequenceNumber: seq, ItemID: itemID,
		OutputIndex: zeroIndex(outputIndex), ContentIndex: zeroIndex(contentIndex), Part: &part,
	}
}

func ContentPartDoneEvent(seq int, itemID string, outputIndex, contentIndex int, part OutputTextPart) Event {
	return Event{
		Type: EventContentPartDone, SequenceNumber: seq, ItemID: itemID,
		OutputIndex: zeroIndex(outputIndex), ContentIndex: zeroIndex(contentIndex), Part: &part,
	}
}

func OutputTextDeltaEvent(seq int, itemID string, outputIndex, contentIndex int, delta string) Event {
	return Event{
		Type: EventOutputTextDelta, SequenceNumber: seq, ItemID: itemID,
		OutputIndex: zeroIndex(outputIndex), ContentIndex: zeroIndex(contentIndex), Delta: delta,
	}
}

func OutputTextDoneEvent(seq int, itemID string, outputIndex, contentIndex int, text string) Event {
	return Event{
		Type: EventOutputTextDone, SequenceNumber: seq, ItemID: itemID,
		OutputIndex: zeroIndex(outputIndex), ContentIndex: zeroIndex(contentIndex), Text: text,
	}
}

func CompletedEvent(seq int, resp *Response) Event {
	return Event{Type: EventCompleted, SequenceNumber: seq, Response: resp}
}

func FailedEvent(seq int, resp *Response) Event {
	return Event{Type: EventFailed, SequenceNumber: seq, Response: resp}
}

func ErrorEvent(seq int, detail ErrorDetail) Event {
	return Event{Type: EventError, SequenceNumber: seq, Error: &detail}
}
