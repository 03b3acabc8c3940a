package steps

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/shaiso/Planflow/internal/domain"
)

// PlanFeed — источник строк планов для шага захвата.
//
// Боевой адаптер читает терминальные экраны внешней системы; здесь
// поставляется симулятор с тем же распределением ситуаций.
type PlanFeed interface {
	// Fetch возвращает очередную порцию планов-кандидатов.
	Fetch(ctx context.Context) ([]domain.Plan, error)
}

// defaultFeedBatch — размер порции симулятора.
const defaultFeedBatch = 50

// SimulatedFeed — симулятор источника планов.
//
// Распределение ситуаций повторяет наблюдаемое в боевой базе:
// подавляющее большинство в "P.RESC", небольшая доля в ситуациях,
// подлежащих отбраковке фильтрами захвата.
type SimulatedFeed struct {
	mu    sync.Mutex
	rng   *rand.Rand
	batch int
}

// NewSimulatedFeed создаёт симулятор с указанным seed.
func NewSimulatedFeed(seed int64) *SimulatedFeed {
	return &SimulatedFeed{
		rng:   rand.New(rand.NewSource(seed)),
		batch: defaultFeedBatch,
	}
}

// SetBatch задаёт размер порции.
func (f *SimulatedFeed) SetBatch(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.batch = n
	}
}

// Fetch реализует PlanFeed.
func (f *SimulatedFeed) Fetch(ctx context.Context) ([]domain.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	plans := make([]domain.Plan, 0, f.batch)
	for i := 0; i < f.batch; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		plans = append(plans, f.generate())
	}
	return plans, nil
}

func (f *SimulatedFeed) generate() domain.Plan {
	situation := "P.RESC"
	switch roll := f.rng.Float64(); {
	case roll < 0.05:
		situation = "SIT ESPECIAL"
	case roll < 0.07:
		situation = "LIQUIDADO"
	case roll < 0.09:
		situation = "RESCINDIDO"
	case roll < 0.13:
		situation = "GRDE EMITIDA"
	}

	return domain.Plan{
		Number:            f.planNumber(),
		CompanyName:       f.companyName(),
		CurrentSituation:  situation,
		PreviousSituation: "P.RESC",
		Balance:           1_000 + f.rng.Float64()*149_000,
		DaysOverdue:       90 + f.rng.Intn(31),
		TaxIDs:            []string{f.cnpj()},
		Status:            domain.PlanStatusPending,
	}
}

func (f *SimulatedFeed) planNumber() string {
	year := 2003 + f.rng.Intn(23)
	suffix := 1010 + f.rng.Intn(95043)
	return fmt.Sprintf("%04d%05d", year, suffix)
}

func (f *SimulatedFeed) companyName() string {
	prefixes := []string{"COMERCIAL", "INDUSTRIA", "TRANSPORTES", "CONSTRUTORA", "SERVICOS"}
	suffixes := []string{"ALFA", "BETA", "HORIZONTE", "NACIONAL", "DO SUL", "UNIAO"}
	return prefixes[f.rng.Intn(len(prefixes))] + " " + suffixes[f.rng.Intn(len(suffixes))] + " LTDA"
}

// cnpj генерирует валидный CNPJ с контрольными цифрами.
func (f *SimulatedFeed) cnpj() string {
	digits := make([]int, 12)
	for i := 0; i < 8; i++ {
		digits[i] = f.rng.Intn(10)
	}
	digits[11] = 1 // филиал 0001

	dv := func(ds []int, weights []int) int {
		sum := 0
		for i, d := range ds {
			sum += d * weights[i]
		}
		if r := sum % 11; r >= 2 {
			return 11 - r
		}
		return 0
	}

	d1 := dv(digits, []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	d2 := dv(append(append([]int{}, digits...), d1), []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})

	c := append(append([]int{}, digits...), d1, d2)
	return fmt.Sprintf("%d%d.%d%d%d.%d%d%d/%d%d%d%d-%d%d",
		c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7], c[8], c[9], c[10], c[11], c[12], c[13])
}
