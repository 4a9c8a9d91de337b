package detection

import "image"

// ComponentAt returns the 8-connected component of set pixels in mask that
// contains (x, y), in visiting order.
//
// mask is row-major with width*height entries. An unset or out-of-range start
// pixel yields nil.
//
// The fill is iterative (stack based) so large components cannot overflow the
// goroutine stack.
func ComponentAt(mask []bool, width, height, x, y int) []image.Point {
	if x < 0 || x >= width || y < 0 || y >= height || !mask[y*width+x] {
		return nil
	}

	visited := make([]bool, width*height)
	component := make([]image.Point, 0, 64)
	stack := []image.Point{{X: x, Y: y}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if visited[i] || !mask[i] {
			continue
		}

		visited[i] = true
		component = append(component, p)

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}

	return component
}
