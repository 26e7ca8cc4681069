package orderbook

type color uint8

const (
	red color = iota
	black
)

type rbNode struct {
	key    uint64
	level  *PriceLevel
	color  color
	left   *rbNode
	right  *rbNode
	parent *rbNode
}

// RBTree indexes price levels by price.
type RBTree struct {
	root *rbNode
	nil  *rbNode // black sentinel
	size int
}

func NewRBTree() *RBTree {
	nilNode := &rbNode{color: black}
	return &RBTree{
		root: nilNode,
		nil:  nilNode,
	}
}

// ---- public API ----

func (t *RBTree) Size() int { return t.size }

func (t *RBTree) Find(price uint64) *PriceLevel {
	n := t.find(price)
	if n == t.nil {
		return nil
	}
	return n.level
}

func (t *RBTree) GetOrCreate(price uint64) *PriceLevel {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if price < x.key {
			x = x.left
		} else if price > x.key {
			x = x.right
		} else {
			return x.level
		}
	}

	lvl := &PriceLevel{Price: price}
	z := &rbNode{
		key:    price,
		level:  lvl,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: y,
	}

	if y == t.nil {
		t.root = z
	} else if z.key < y.key {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++
	return lvl
}

func (t *RBTree) Delete(price uint64) bool {
	z := t.find(price)
	if z == t.nil {
		return false
	}
	t.deleteNode(z)
	t.size--
	return true
}

func (t *RBTree) BestMin() *PriceLevel {
	n := t.min(t.root)
	if n == t.nil {
		return nil
	}
	return n.level
}

func (t *RBTree) BestMax() *PriceLevel {
	n := t.max(t.root)
	if n == t.nil {
		return nil
	}
	return n.level
}

// ---- walkers ----

// walkAsc visits levels from lowest price until fn returns false.
func (t *RBTree) walkAsc(fn func(*PriceLevel) bool) {
	for n := t.min(t.root); n != t.nil; n = t.next(n) {
		if !fn(n.level) {
			return
		}
	}
}

func (t *RBTree) walkDesc(fn func(*PriceLevel) bool) {
	for n := t.max(t.root); n != t.nil; n = t.prev(n) {
		if !fn(n.level) {
			return
		}
	}
}

// ---- internal helpers ----

func (t *RBTree) find(price uint64) *rbNode {
	n := t.root
	for n != t.nil {
		if price < n.key {
			n = n.left
		} else if price > n.key {
			n = n.right
		} else {
			return n
		}
	}
	return t.nil
}

func (t *RBTree) min(n *rbNode) *rbNode {
	for n != t.nil && n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *RBTree) max(n *rbNode) *rbNode {
	for n != t.nil && n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *RBTree) next(n *rbNode) *rbNode {
	if n.right != t.nil {
		return t.min(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *RBTree) prev(n *rbNode) *rbNode {
	if n.left != t.nil {
		return t.max(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

// ---- balancing ----

func (t *RBTree) leftRotate(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *RBTree) rightRotate(y *rbNode) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *RBTree) insertFixup(z *rbNode) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.leftRotate(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rightRotate(z.parent.parent)
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rightRotate(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.leftRotate(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *RBTree) transplant(u, v *rbNode) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *RBTree) deleteNode(z *rbNode) {
	y := z
	yColor := y.color
	var x *rbNode

	switch {
	case z.left == t.nil:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.min(z.right)
		yColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yColor == black {
		t.deleteFixup(x)
	}
}

func (t *RBTree) deleteFixup(x *rbNode) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color = black
				w.color = red
				t.rightRotate(w)
				w = x.parent.right
			}
			w.color = x.parent.color
			x.parent.color = black
			w.right.color = black
			t.leftRotate(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color = black
				w.color = red
				t.leftRotate(w)
				w = x.parent.left
			}
			w.color = x.parent.color
			x.parent.color = black
			w.left.color = black
			t.rightRotate(x.parent)
			x = t.root
		}
	}
	x.color = black
}
