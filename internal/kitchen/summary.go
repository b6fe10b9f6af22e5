// Package kitchen собирает сводку для кухонного экрана: сколько каждой позиции готовить прямо сейчас.
package kitchen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
)

// LineTotal: суммарное количество одной позиции по всем ожидающим заказам
type LineTotal struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Summary: сводка по очереди
type Summary struct {
	Lines   []LineTotal `json:"lines"`
	Orders  int         `json:"orders"`
	Skipped int         `json:"skipped"`
}

var linePattern = regexp.MustCompile(`^(.+?)\s+x(\d+)$`)

// Summarize суммирует позиции по заказам в статусе Pending
// у старых записей нет lines, их количества восстанавливаются из текста items;
// если текст не разбирается, заказ пропускается и попадает в Skipped.
// короткие названия из старого текста ("Burger") сводятся к строкам menu
func Summarize(orders []model.Order, menu []queue.MenuItem) Summary {
	s := Summary{Lines: []LineTotal{}}
	index := make(map[string]int)

	for _, o := range orders {
		if o.Status != model.StatusPending {
			continue
		}

		lines := o.Lines
		if len(lines) == 0 {
			parsed, err := ParseItems(o.Items)
			if err != nil {
				s.Skipped++
				continue
			}
			lines = parsed
		}

		s.Orders++
		for _, l := range lines {
			if l.Quantity <= 0 {
				continue
			}
			i, ok := index[l.Name]
			if !ok {
				i = len(s.Lines)
				index[l.Name] = i
				s.Lines = append(s.Lines, LineTotal{Name: l.Name})
			}
			s.Lines[i].Quantity += l.Quantity
		}
	}

	return s
}

// ParseItems разбирает описание вида "Burger x2, Fries x1"
func ParseItems(text string) ([]model.LineItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty items text")
	}

	parts := strings.Split(text, ",")
	lines := make([]model.LineItem, 0, len(parts))
	for _, part := range parts {
		m := linePattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("unparseable item %q", part)
		}
		qty, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("bad quantity in %q: %w", part, err)
		}
		lines = append(lines, model.LineItem{Name: m[1], Quantity: qty})
	}
	return lines, nil
}

// resolveName находит строку меню для названия из старой записи:
// точное совпадение или единственная строка, которая заканчивается этим словом
// ("Burger" -> "Blue Special Burger"); иначе название остаётся как есть
func resolveName(name string, menu []queue.MenuItem) string {
	match := ""
	for _, item := range menu {
		if strings.EqualFold(item.Name, name) {
			return item.Name
		}
		if strings.HasSuffix(strings.ToLower(item.Name), " "+strings.ToLower(name)) {
			if match != "" {
				return name
			}
			match = item.Name
		}
	}
	if match == "" {
		return name
	}
	return match
}
