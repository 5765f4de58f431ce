package brackets

import (
	"errors"
	"sort"
)

var (
	ErrNoEntrants  = errors.New("cannot pair a round with zero entrants")
	ErrOddEntrants = errors.New("cannot pair a round with an odd number of entrants")
)

// Entrant — команда-участница раунда с её текущим рейтингом.
type Entrant struct {
	TeamID int
	Rating float64
}

// Pair — одна пара сетки; Team1 — участник с меньшим рейтингом.
type Pair struct {
	Team1ID int
	Team2ID int
}

// PairByRating сортирует участников по возрастанию рейтинга (ничьи — в порядке
// входа) и сводит соседей по рангу: 0 с 1, 2 с 3 и так далее. Пары получаются
// между близкими по силе командами, а не по классическому посеву сетки.
func PairByRating(entrants []Entrant) ([]Pair, error) {
	n := len(entrants)
	if n == 0 {
		return nil, ErrNoEntrants
	}
	if n%2 != 0 {
		return nil, ErrOddEntrants
	}

	ranked := make([]Entrant, n)
	copy(ranked, entrants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rating < ranked[j].Rating
	})

	pairs := make([]Pair, 0, n/2)
	for i := 0; i < n; i += 2 {
		pairs = append(pairs, Pair{
			Team1ID: ranked[i].TeamID,
			Team2ID: ranked[i+1].TeamID,
		})
	}
	return pairs, nil
}
