package utim

// platformProcessor is a placeholder: platform traffic terminates outside
// the core, so every item is dropped. It exists to keep dispatch total.
type platformProcessor struct{}

func (p *platformProcessor) process(item Item) Item {
	item.Status = StatusFinalized
	return item
}
