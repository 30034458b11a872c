package jdi

import (
	"sync"

	"github.com/dshills/jdwp/internal/jdwp"
)

type objectKey struct {
	tag jdwp.Tag
	id  jdwp.ObjectID
}

type typeKey struct {
	tag jdwp.TypeTag
	id  jdwp.ReferenceTypeID
}

// mirrorCache interns mirrors so that one identifier yields one mirror for
// the life of the connection. Reference types live in an arena keyed by
// (type tag, id); a reverse-dependency index records, for each type id,
// the cached types whose declared superclass or interfaces name it, so a
// flush can reach every type holding inherited data derived from it.
type mirrorCache struct {
	vm *VirtualMachine

	mu          sync.Mutex
	objects     map[objectKey]Reference
	types       map[typeKey]ReferenceType
	bySignature map[string][]ReferenceType
	dependents  map[jdwp.ReferenceTypeID]map[*refType]struct{}

	// epoch advances on every flush; cache stores computed before a flush
	// are discarded.
	epoch uint64
}

func newMirrorCache(vm *VirtualMachine) *mirrorCache {
	return &mirrorCache{
		vm:          vm,
		objects:     make(map[objectKey]Reference),
		types:       make(map[typeKey]ReferenceType),
		bySignature: make(map[string][]ReferenceType),
		dependents:  make(map[jdwp.ReferenceTypeID]map[*refType]struct{}),
	}
}

// referenceType returns the mirror for (tag, id), creating it on first sight.
func (c *mirrorCache) referenceType(tag jdwp.TypeTag, id jdwp.ReferenceTypeID) ReferenceType {
	if id == 0 {
		return nil
	}
	if tag != jdwp.TypeTagInterface && tag != jdwp.TypeTagArray {
		tag = jdwp.TypeTagClass
	}
	key := typeKey{tag, id}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.types[key]; ok {
		return t
	}

	var t ReferenceType
	switch tag {
	case jdwp.TypeTagInterface:
		it := &InterfaceType{}
		it.init(c.vm, tag, id, it)
		t = it
	case jdwp.TypeTagArray:
		at := &ArrayType{}
		at.init(c.vm, tag, id, at)
		t = at
	default:
		ct := &ClassType{}
		ct.init(c.vm, tag, id, ct)
		t = ct
	}
	c.types[key] = t

	if c.vm.cfg.TraceRefTypes {
		c.vm.log.Debugf("[%s] new %s type %d", c.vm.id, tag, id)
	}
	return t
}

func (c *mirrorCache) classType(id jdwp.ReferenceTypeID) *ClassType {
	t, _ := c.referenceType(jdwp.TypeTagClass, id).(*ClassType)
	return t
}

func (c *mirrorCache) interfaceType(id jdwp.ReferenceTypeID) *InterfaceType {
	t, _ := c.referenceType(jdwp.TypeTagInterface, id).(*InterfaceType)
	return t
}

// knownTypes returns a snapshot of the arena.
func (c *mirrorCache) knownTypes() []ReferenceType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ReferenceType, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	return out
}

// noteSignature records a type's signature and indexes it.
func (c *mirrorCache) noteSignature(t ReferenceType, sig string) {
	b := t.base()

	c.mu.Lock()
	defer c.mu.Unlock()

	b.mu.Lock()
	known := b.sigKnown
	b.signature, b.sigKnown = sig, true
	b.mu.Unlock()

	if !known {
		c.bySignature[sig] = append(c.bySignature[sig], t)
	}
}

// object interns a reference value. A zero id yields nil.
func (c *mirrorCache) object(tag jdwp.Tag, id jdwp.ObjectID) Reference {
	if id == 0 {
		return nil
	}
	switch tag {
	case jdwp.TagString, jdwp.TagArray, jdwp.TagThread, jdwp.TagThreadGroup,
		jdwp.TagClassLoader, jdwp.TagClassObject:
	default:
		tag = jdwp.TagObject
	}
	key := objectKey{tag, id}

	c.mu.Lock()
	defer c.mu.Unlock()

	if o, ok := c.objects[key]; ok {
		return o
	}

	base := ObjectReference{vm: c.vm, id: id, tag: tag}
	var o Reference
	switch tag {
	case jdwp.TagString:
		o = &StringReference{ObjectReference: base}
	case jdwp.TagArray:
		o = &ArrayReference{ObjectReference: base}
	case jdwp.TagThread:
		o = &ThreadReference{ObjectReference: base}
	case jdwp.TagThreadGroup:
		o = &ThreadGroupReference{ObjectReference: base}
	case jdwp.TagClassLoader:
		o = &ClassLoaderReference{ObjectReference: base}
	case jdwp.TagClassObject:
		o = &ClassObjectReference{ObjectReference: base}
	default:
		o = &base
	}
	c.objects[key] = o

	if c.vm.cfg.TraceObjRefs {
		c.vm.log.Debugf("[%s] new %s mirror %d", c.vm.id, tag, id)
	}
	return o
}

func (c *mirrorCache) thread(id jdwp.ObjectID) *ThreadReference {
	t, _ := c.object(jdwp.TagThread, id).(*ThreadReference)
	return t
}

func (c *mirrorCache) threadGroup(id jdwp.ObjectID) *ThreadGroupReference {
	g, _ := c.object(jdwp.TagThreadGroup, id).(*ThreadGroupReference)
	return g
}

func (c *mirrorCache) classLoader(id jdwp.ObjectID) *ClassLoaderReference {
	l, _ := c.object(jdwp.TagClassLoader, id).(*ClassLoaderReference)
	return l
}

func (c *mirrorCache) plainObject(id jdwp.ObjectID) *ObjectReference {
	o, _ := c.object(jdwp.TagObject, id).(*ObjectReference)
	return o
}

// currentEpoch returns the flush epoch to pass to store.
func (c *mirrorCache) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// store runs fn only if no flush happened since epoch was read.
func (c *mirrorCache) store(epoch uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	fn()
	return true
}

// addDependentLocked records that t's declared supertypes include parent.
func (c *mirrorCache) addDependentLocked(parent jdwp.ReferenceTypeID, t *refType) {
	deps, ok := c.dependents[parent]
	if !ok {
		deps = make(map[*refType]struct{})
		c.dependents[parent] = deps
	}
	deps[t] = struct{}{}
	t.registered = append(t.registered, parent)
}

func (c *mirrorCache) dropDependentsLocked(t *refType) {
	for _, parent := range t.registered {
		if deps, ok := c.dependents[parent]; ok {
			delete(deps, t)
			if len(deps) == 0 {
				delete(c.dependents, parent)
			}
		}
	}
	t.registered = nil
}

// flush clears t's cached metadata and the inherited caches of every type
// that transitively depends on it. Identity is preserved.
func (c *mirrorCache) flush(t *refType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(t)
}

func (c *mirrorCache) flushLocked(t *refType) {
	c.epoch++

	c.dropDependentsLocked(t)
	t.clearDeclared()
	t.clearDerived()

	seen := map[*refType]bool{t: true}
	queue := []jdwp.ReferenceTypeID{t.id}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for dep := range c.dependents[id] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			dep.clearDerived()
			queue = append(queue, dep.id)
		}
	}

	if c.vm.cfg.TraceRefTypes {
		c.vm.log.Debugf("[%s] flushed type %d and %d dependents", c.vm.id, t.id, len(seen)-1)
	}
}

// flushAll clears every cached type.
func (c *mirrorCache) flushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, t := range c.types {
		b := t.base()
		b.clearDeclared()
		b.clearDerived()
		b.registered = nil
	}
	c.dependents = make(map[jdwp.ReferenceTypeID]map[*refType]struct{})
}

// unload flushes and forgets every type with the given signature.
func (c *mirrorCache) unload(sig string) []ReferenceType {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := c.bySignature[sig]
	delete(c.bySignature, sig)
	for _, t := range types {
		b := t.base()
		c.flushLocked(b)
		delete(c.types, typeKey{b.tag, b.id})
		delete(c.dependents, b.id)
	}
	return types
}
