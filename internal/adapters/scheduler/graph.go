package scheduler

type dependencyGraph struct {
	dependsOn  map[string][]string
	dependedBy map[string][]string
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		dependsOn:  make(map[string][]string),
		dependedBy: make(map[string][]string),
	}
}

func (g *dependencyGraph) add(id string, dependencies []string) {
	if _, ok := g.dependsOn[id]; !ok {
		g.dependsOn[id] = nil
	}
	for _, dep := range dependencies {
		g.dependsOn[id] = append(g.dependsOn[id], dep)
		g.dependedBy[dep] = append(g.dependedBy[dep], id)
	}
}

func (g *dependencyGraph) remove(id string) {
	for _, dep := range g.dependsOn[id] {
		g.dependedBy[dep] = removeString(g.dependedBy[dep], id)
	}
	delete(g.dependsOn, id)

	for _, dependent := range g.dependedBy[id] {
		g.dependsOn[dependent] = removeString(g.dependsOn[dependent], id)
	}
	delete(g.dependedBy, id)
}

func (g *dependencyGraph) dependencies(id string) []string {
	return g.dependsOn[id]
}

func (g *dependencyGraph) dependents(id string) []string {
	return g.dependedBy[id]
}

func (g *dependencyGraph) edgeCount() int {
	count := 0
	for _, deps := range g.dependsOn {
		count += len(deps)
	}
	return count
}

func (g *dependencyGraph) wouldCycle(id string, dependencies []string) bool {
	visited := make(map[string]bool)

	var reaches func(from, target string) bool
	reaches = func(from, target string) bool {
		if from == target {
			return true
		}
		if visited[from] {
			return false
		}
		visited[from] = true
		for _, dep := range g.dependsOn[from] {
			if reaches(dep, target) {
				return true
			}
		}
		return false
	}

	for _, dep := range dependencies {
		if dep == id || reaches(dep, id) {
			return true
		}
	}
	return false
}

func removeString(values []string, target string) []string {
	result := values[:0]
	for _, v := range values {
		if v != target {
			result = append(result, v)
		}
	}
	return result
}
