package invitation

import (
	"fmt"
	"sort"
)

// ErrBlockNotFound 表示目标区块不在文档中。
var ErrBlockNotFound = fmt.Errorf("block not found")

// Document 是一份邀请函草稿：按 Order 排序的区块集合。
// 区块存放在切片中，id 索引用于 O(1) 查找；所有修改都经由本类型的
// 方法完成，方法返回后不变量（id 唯一、Order 可全序）始终成立。
//
// Document 不做任何 I/O，持久化由调用方通过 canvas 包转换后完成。
type Document struct {
	blocks []Block
	index  map[string]int
}

// NewDocument 创建空文档。
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// FromBlocks 用现成的区块列表构造文档，仅校验 id 唯一性。
// Order 重复在此阶段是允许的（转换层可能产生并列，持久化前用
// Normalize 消除）。
func FromBlocks(blocks []Block) (*Document, error) {
	d := NewDocument()
	for _, b := range blocks {
		if _, exists := d.index[b.ID]; exists {
			return nil, fmt.Errorf("duplicate block id %q", b.ID)
		}
		d.index[b.ID] = len(d.blocks)
		d.blocks = append(d.blocks, b)
	}
	return d, nil
}

// Len 返回区块总数（含不可见区块）。
func (d *Document) Len() int { return len(d.blocks) }

// ByID 返回指定区块的副本。
func (d *Document) ByID(id string) (Block, bool) {
	i, ok := d.index[id]
	if !ok {
		return Block{}, false
	}
	return d.blocks[i], true
}

// Blocks 返回按 Order 升序排序的全部区块副本。并列的 Order
// 按插入顺序稳定排序。
func (d *Document) Blocks() []Block {
	out := append([]Block(nil), d.blocks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// VisibleBlocks 返回排序后的可见区块，供展示层直接消费。
func (d *Document) VisibleBlocks() []Block {
	all := d.Blocks()
	out := make([]Block, 0, len(all))
	for _, b := range all {
		if b.Visible {
			out = append(out, b)
		}
	}
	return out
}

// Add 在文档末尾追加一个指定类型的默认区块（Order = 当前最大值 + 1），
// 返回新区块的副本。未知类型不产生任何修改。
func (d *Document) Add(kind Kind) (Block, error) {
	b, err := NewBlock(kind)
	if err != nil {
		return Block{}, err
	}
	b.Order = d.maxOrder() + 1
	d.index[b.ID] = len(d.blocks)
	d.blocks = append(d.blocks, b)
	return b, nil
}

// Remove 删除指定区块。其余区块的 Order 保持不变（允许出现空洞）。
func (d *Document) Remove(id string) error {
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBlockNotFound, id)
	}
	d.blocks = append(d.blocks[:i], d.blocks[i+1:]...)
	d.reindex()
	return nil
}

// Update 将补丁合并进指定区块的 payload。
func (d *Document) Update(id string, p Patch) error {
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBlockNotFound, id)
	}
	return applyPatch(&d.blocks[i], p)
}

// Duplicate 克隆指定区块（payload 与 Style 深拷贝、新 id），插入到
// 源区块之后：克隆件取 Order+1，其后所有区块的 Order 依次 +1。
func (d *Document) Duplicate(id string) (Block, error) {
	i, ok := d.index[id]
	if !ok {
		return Block{}, fmt.Errorf("%w: %q", ErrBlockNotFound, id)
	}
	src := d.blocks[i]
	clone := src.Clone()
	clone.Order = src.Order + 1

	for j := range d.blocks {
		if d.blocks[j].Order > src.Order {
			d.blocks[j].Order++
		}
	}
	d.index[clone.ID] = len(d.blocks)
	d.blocks = append(d.blocks, clone)
	return clone, nil
}

// MoveUp 将指定区块与排序序列中的前一个区块交换 Order；
// 已在最前则为 no-op。
func (d *Document) MoveUp(id string) error { return d.move(id, -1) }

// MoveDown 将指定区块与排序序列中的后一个区块交换 Order；
// 已在最后则为 no-op。
func (d *Document) MoveDown(id string) error { return d.move(id, +1) }

func (d *Document) move(id string, dir int) error {
	if _, ok := d.index[id]; !ok {
		return fmt.Errorf("%w: %q", ErrBlockNotFound, id)
	}
	sorted := d.Blocks()
	pos := -1
	for i, b := range sorted {
		if b.ID == id {
			pos = i
			break
		}
	}
	other := pos + dir
	if other < 0 || other >= len(sorted) {
		return nil // 边界 no-op
	}

	i := d.index[sorted[pos].ID]
	j := d.index[sorted[other].ID]
	d.blocks[i].Order, d.blocks[j].Order = d.blocks[j].Order, d.blocks[i].Order
	return nil
}

// SetVisible 切换区块可见性，不改变 Order。
func (d *Document) SetVisible(id string, visible bool) error {
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBlockNotFound, id)
	}
	d.blocks[i].Visible = visible
	return nil
}

// Validate 返回所有"可见但未填完必填字段"的区块 id（按 Order 排序）。
// 空结果表示文档可以正式保存；是否允许保存草稿由调用方决定。
func (d *Document) Validate() []string {
	var incomplete []string
	for _, b := range d.VisibleBlocks() {
		if !b.Complete() {
			incomplete = append(incomplete, b.ID)
		}
	}
	return incomplete
}

// Normalize 按当前排序序列把 Order 重排为 1..n，消除转换过程中可能
// 产生的并列值。持久化之前必须调用。
func (d *Document) Normalize() {
	sorted := d.Blocks()
	for i, b := range sorted {
		d.blocks[d.index[b.ID]].Order = i + 1
	}
}

func (d *Document) maxOrder() int {
	max := 0
	for _, b := range d.blocks {
		if b.Order > max {
			max = b.Order
		}
	}
	return max
}

func (d *Document) reindex() {
	d.index = make(map[string]int, len(d.blocks))
	for i, b := range d.blocks {
		d.index[b.ID] = i
	}
}
