package models

// Alive announces that the agent has started.
type Alive struct {
	Header
}

func (*Alive) Kind() Kind { return KindAlive }

func (a *Alive) Wire() ([]byte, error) {
	return newObjectWriter(a.Header).bytes()
}
