package block

import (
	"errors"
	"fmt"
	"sort"
)

// ID представляет идентификатор типа блока
type ID uint16

// Air выделенное значение "нет блока". Это не то же самое, что
// "чанк ещё не сгенерирован" (см. world.BlockState).
const Air ID = 0

var (
	// ErrUnknownBlock возвращается при обращении к незарегистрированному имени блока
	ErrUnknownBlock = errors.New("unknown block type")
	// ErrDuplicateBlock возвращается при повторной регистрации имени или ID
	ErrDuplicateBlock = errors.New("duplicate block type")
)

// Properties строка таблицы возможностей блока.
// Все проверки "проходим ли блок" идут через неё, а не через сравнение имён.
type Properties struct {
	Name        string `yaml:"name" json:"name"`
	Solid       bool   `yaml:"solid" json:"solid"`             // блокирует движение сущностей
	Liquid      bool   `yaml:"liquid" json:"liquid"`           // жидкость (вода, лава)
	Raycast     bool   `yaml:"raycast" json:"raycast"`         // ловит луч выбора блока
	Transparent bool   `yaml:"transparent" json:"transparent"` // не скрывает грани соседей
}

// Registry хранит соответствие ID <-> имя и таблицу возможностей.
// Реестр заполняется при старте и дальше только читается.
type Registry struct {
	props  map[ID]Properties
	byName map[string]ID
	next   ID
}

// NewRegistry создаёт реестр, в котором зарегистрирован только воздух
func NewRegistry() *Registry {
	r := &Registry{
		props:  make(map[ID]Properties),
		byName: make(map[string]ID),
		next:   1,
	}
	r.props[Air] = Properties{Name: "air", Transparent: true}
	r.byName["air"] = Air
	return r
}

// Register добавляет тип блока со следующим свободным ID
func (r *Registry) Register(p Properties) (ID, error) {
	for {
		if _, taken := r.props[r.next]; !taken {
			break
		}
		r.next++
	}
	id := r.next
	if err := r.RegisterWithID(id, p); err != nil {
		return Air, err
	}
	return id, nil
}

// RegisterWithID добавляет тип блока с заданным ID
func (r *Registry) RegisterWithID(id ID, p Properties) error {
	if p.Name == "" {
		return fmt.Errorf("register block %d: empty name", id)
	}
	if _, exists := r.byName[p.Name]; exists {
		return fmt.Errorf("register %q: %w", p.Name, ErrDuplicateBlock)
	}
	if _, exists := r.props[id]; exists {
		return fmt.Errorf("register %q with id %d: %w", p.Name, id, ErrDuplicateBlock)
	}
	r.props[id] = p
	r.byName[p.Name] = id
	return nil
}

// Override заменяет свойства уже зарегистрированного блока (например, из конфига)
func (r *Registry) Override(p Properties) error {
	id, ok := r.byName[p.Name]
	if !ok {
		return fmt.Errorf("override %q: %w", p.Name, ErrUnknownBlock)
	}
	r.props[id] = p
	return nil
}

// Get возвращает свойства для указанного ID
func (r *Registry) Get(id ID) (Properties, bool) {
	p, ok := r.props[id]
	return p, ok
}

// Lookup возвращает ID по имени
func (r *Registry) Lookup(name string) (ID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// MustLookup возвращает ID по имени или паникует; только для инициализации и тестов
func (r *Registry) MustLookup(name string) ID {
	id, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("block %q is not registered", name))
	}
	return id
}

// Name возвращает имя типа блока ("" для неизвестного ID)
func (r *Registry) Name(id ID) string {
	return r.props[id].Name
}

// IsSolid возвращает true, если блок непроходим. Воздух и неизвестные ID проходимы.
func (r *Registry) IsSolid(id ID) bool {
	if id == Air {
		return false
	}
	return r.props[id].Solid
}

// IsTransparent возвращает true, если блок не скрывает грани соседей.
// Неизвестные ID считаются непрозрачными.
func (r *Registry) IsTransparent(id ID) bool {
	if id == Air {
		return true
	}
	p, ok := r.props[id]
	return ok && p.Transparent
}

// IsRaycastTarget возвращает true, если луч выбора останавливается на блоке
func (r *Registry) IsRaycastTarget(id ID) bool {
	if id == Air {
		return false
	}
	return r.props[id].Raycast
}

// SetNonSolid помечает перечисленные типы как проходимые.
// Набор непроходимых типов задаётся конфигурацией, а не кодом.
func (r *Registry) SetNonSolid(names ...string) error {
	for _, name := range names {
		id, ok := r.byName[name]
		if !ok {
			return fmt.Errorf("non-solid %q: %w", name, ErrUnknownBlock)
		}
		p := r.props[id]
		p.Solid = false
		r.props[id] = p
	}
	return nil
}

// Names возвращает отсортированный список зарегистрированных имён
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply регистрирует новые определения и переопределяет существующие
func (r *Registry) Apply(defs []Properties) error {
	for _, def := range defs {
		if _, exists := r.byName[def.Name]; exists {
			if err := r.Override(def); err != nil {
				return err
			}
			continue
		}
		if _, err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
