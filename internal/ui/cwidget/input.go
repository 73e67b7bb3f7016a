package cwidget

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Input is a labelled entry that validates its text into T and shows the
// last accepted value in the label.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
}

// NewIntInput accepts integers >= min. Empty text means the default value.
func NewIntInput(label, placeholder string, defaultValue, min int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
	}

	input.Validator = func(s string) (int, error) {
		return ParseIntAtLeast(s, input.DefaultValue, min)
	}

	input.build(func(v int) string { return strconv.Itoa(v) })

	return input
}

// ParseIntAtLeast parses s as an integer no smaller than min; blank input
// yields def.
func ParseIntAtLeast(s string, def, min int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	res, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("not a whole number")
	}

	if res < min {
		return def, fmt.Errorf("must be at least %d", min)
	}

	return res, nil
}

func (item *Input[T]) build(format func(T) string) {
	item.labelWidget = widget.NewLabel(fmt.Sprintf("%s: %s", item.LabelText, format(item.DefaultValue)))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = func(s string) {
		res, err := item.Validator(s)
		item.SetError(err)

		if err == nil {
			if item.OnChanged != nil {
				item.OnChanged(res)
			}
			item.labelWidget.SetText(fmt.Sprintf("%s: %s", item.LabelText, format(res)))
		}
	}

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}
