package block

// Константы ID блоков стандартного набора
const (
	// Базовые типы блоков
	Stone ID = iota + 1 // 1
	Dirt                // 2
	Grass               // 3
	Sand                // 4
	Water               // 5
	Wood                // 6
	Leaves              // 7
	Glass               // 8
	Bedrock             // 9

	// Декоративные блоки (начиная с 100)
	FlowerRed ID = 100 // Цветок
	LongGrass ID = 101 // Высокая трава
	Fern      ID = 102 // Папоротник
)

var defaultBlocks = []struct {
	id    ID
	props Properties
}{
	{Stone, Properties{Name: "stone", Solid: true, Raycast: true}},
	{Dirt, Properties{Name: "dirt", Solid: true, Raycast: true}},
	{Grass, Properties{Name: "grass", Solid: true, Raycast: true}},
	{Sand, Properties{Name: "sand", Solid: true, Raycast: true}},
	{Water, Properties{Name: "water", Liquid: true, Transparent: true}},
	{Wood, Properties{Name: "wood", Solid: true, Raycast: true}},
	{Leaves, Properties{Name: "leaves", Solid: true, Raycast: true, Transparent: true}},
	{Glass, Properties{Name: "glass", Solid: true, Raycast: true, Transparent: true}},
	{Bedrock, Properties{Name: "bedrock", Solid: true, Raycast: true}},
	{FlowerRed, Properties{Name: "flower_red", Raycast: true, Transparent: true}},
	{LongGrass, Properties{Name: "long_grass", Raycast: true, Transparent: true}},
	{Fern, Properties{Name: "fern", Raycast: true, Transparent: true}},
}

// Default возвращает реестр со стандартным набором блоков
func Default() *Registry {
	r := NewRegistry()
	for _, b := range defaultBlocks {
		if err := r.RegisterWithID(b.id, b.props); err != nil {
			panic(err)
		}
	}
	// Пользовательские блоки получают ID после стандартных
	r.next = 1000
	return r
}
