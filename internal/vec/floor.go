package vec

// FloorDiv делит a на b с округлением вниз (к -∞), а не к нулю.
// b должен быть положительным.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}

// Mod возвращает неотрицательный остаток ((a % b) + b) % b.
func Mod(a, b int) int {
	return ((a % b) + b) % b
}

// Abs возвращает модуль целого числа
func Abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
