package block

import (
	"fmt"
	"math"
	"sync"
)

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID       BlockID = iota // 0
	StoneBlockID                    // 1
	GrassBlockID                    // 2
	WaterBlockID                    // 3
	SandBlockID                     // 4
	DirtBlockID                     // 5
	DeepWaterBlockID                // 6
	BedrockBlockID                  // 7

	// Декоративные блоки (начиная с 100)
	FlowerBlockID BlockID = 100 // Цветок
	LogBlockID    BlockID = 101 // Ствол дерева
	LeavesBlockID BlockID = 102 // Листва
	CactusBlockID BlockID = 103 // Кактус

	// Absent означает, что вид не хранит значение в этой точке.
	// Не регистрируется и не сохраняется в чанках.
	Absent BlockID = math.MaxUint16
)

var (
	registryMu sync.RWMutex
	names      = make(map[BlockID]string)
	ids        = make(map[string]BlockID)
)

func init() {
	Register(AirBlockID, "air")
	Register(StoneBlockID, "stone")
	Register(GrassBlockID, "grass")
	Register(WaterBlockID, "water")
	Register(SandBlockID, "sand")
	Register(DirtBlockID, "dirt")
	Register(DeepWaterBlockID, "deep_water")
	Register(BedrockBlockID, "bedrock")
	Register(FlowerBlockID, "flower")
	Register(LogBlockID, "log")
	Register(LeavesBlockID, "leaves")
	Register(CactusBlockID, "cactus")
}

// Register добавляет имя блока в регистр. Повторная регистрация заменяет имя.
func Register(id BlockID, name string) {
	if id == Absent {
		panic("block: cannot register the absent marker")
	}
	registryMu.Lock()
	defer registryMu.Unlock()

	if old, ok := names[id]; ok {
		delete(ids, old)
	}
	names[id] = name
	ids[name] = id
}

// Name возвращает имя блока или "block#N" для незарегистрированного ID
func Name(id BlockID) string {
	if id == Absent {
		return "absent"
	}
	registryMu.RLock()
	name, ok := names[id]
	registryMu.RUnlock()
	if !ok {
		return fmt.Sprintf("block#%d", id)
	}
	return name
}

// Lookup ищет ID по имени
func Lookup(name string) (BlockID, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	id, ok := ids[name]
	return id, ok
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, exists := names[id]
	return exists
}

// String реализует fmt.Stringer
func (id BlockID) String() string {
	return Name(id)
}
