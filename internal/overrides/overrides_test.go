package overrides

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// fixture builds an entity set and the content behind it.
type fixture struct {
	entities []core.Entity
	reader   MapReader
}

func newFixture() *fixture {
	return &fixture{reader: make(MapReader)}
}

func (f *fixture) file(name, content string) core.Entity {
	cid := core.ContentIdOf(content)
	f.reader[cid] = content
	e := core.Entity{Id: core.NewEntityId(name), Name: name, Kind: core.FileKind, ContentId: cid, EndRow: 100}
	f.entities = append(f.entities, e)
	return e
}

func (f *fixture) class(file core.Entity, name string) core.Entity {
	e := core.Entity{Id: core.NewEntityId(file.Name, name), ParentId: &file.Id, Name: name, Kind: core.ClassKind, ContentId: file.ContentId}
	f.entities = append(f.entities, e)
	return e
}

func (f *fixture) method(cls core.Entity, name string) core.Entity {
	e := core.Entity{Id: core.NewEntityId(cls.Id.String(), name), ParentId: &cls.Id, Name: name, Kind: core.MethodKind, ContentId: cls.ContentId}
	f.entities = append(f.entities, e)
	return e
}

func extends(src, tgt core.Entity) core.EntityDep {
	return core.NewDep(src.Id, tgt.Id, core.Extend, core.Row(0), core.WorkDir())
}

func override(child, ancestor core.Entity) core.EntityDep {
	return core.NewDep(child.Id, ancestor.Id, core.Override, core.Row(0), core.WorkDir())
}

const animalsPy = `from abc import ABC, abstractmethod

class Animal(ABC):
    @abstractmethod
    def speak(self):
        pass

    def eat(self):
        pass

class Dog(Animal):
    def speak(self):
        return "woof"

    def eat(self):
        return "bone"
`

func TestDetectOverrides_PythonAbstract(t *testing.T) {
	t.Parallel()
	f := newFixture()
	file := f.file("animals.py", animalsPy)
	animal := f.class(file, "Animal")
	animalSpeak := f.method(animal, "speak")
	f.method(animal, "eat")
	dog := f.class(file, "Dog")
	dogSpeak := f.method(dog, "speak")
	f.method(dog, "eat")

	got := DetectOverrides(f.entities, []core.EntityDep{extends(dog, animal)}, f.reader)
	assert.Equal(t, []core.EntityDep{override(dogSpeak, animalSpeak)}, got)
}

func TestDetectOverrides_QualifiedDecorator(t *testing.T) {
	t.Parallel()
	src := `import abc

class Shape(abc.ABC):
    @abc.abstractmethod
    def area(self):
        pass

class Square(Shape):
    def area(self):
        return 1
`
	f := newFixture()
	file := f.file("shapes.py", src)
	shape := f.class(file, "Shape")
	area := f.method(shape, "area")
	square := f.class(file, "Square")
	squareArea := f.method(square, "area")

	got := DetectOverrides(f.entities, []core.EntityDep{extends(square, shape)}, f.reader)
	assert.Equal(t, []core.EntityDep{override(squareArea, area)}, got)
}

func TestDetectOverrides_MultiLevel(t *testing.T) {
	t.Parallel()
	src := `from abc import abstractmethod

class A:
    @abstractmethod
    def run(self):
        pass

class B(A):
    def run(self):
        pass

class C(B):
    def run(self):
        pass
`
	f := newFixture()
	file := f.file("abc_chain.py", src)
	a := f.class(file, "A")
	aRun := f.method(a, "run")
	b := f.class(file, "B")
	bRun := f.method(b, "run")
	c := f.class(file, "C")
	cRun := f.method(c, "run")

	got := DetectOverrides(f.entities, []core.EntityDep{extends(b, a), extends(c, b)}, f.reader)
	assert.ElementsMatch(t, []core.EntityDep{override(bRun, aRun), override(cRun, aRun)}, got)
}

func TestDetectOverrides_CycleTerminates(t *testing.T) {
	t.Parallel()
	src := `from abc import abstractmethod

class A:
    @abstractmethod
    def run(self):
        pass

class B(A):
    def run(self):
        pass
`
	f := newFixture()
	file := f.file("cycle.py", src)
	a := f.class(file, "A")
	aRun := f.method(a, "run")
	b := f.class(file, "B")
	bRun := f.method(b, "run")

	deps := []core.EntityDep{extends(b, a), extends(a, b), extends(a, a), extends(b, a)}
	got := DetectOverrides(f.entities, deps, f.reader)
	assert.Equal(t, []core.EntityDep{override(bRun, aRun)}, got)
}

func TestDetectOverrides_NotImplementedOption(t *testing.T) {
	t.Parallel()
	src := `class Base:
    def handle(self):
        raise NotImplementedError

class Impl(Base):
    def handle(self):
        return 1
`
	f := newFixture()
	file := f.file("handlers.py", src)
	base := f.class(file, "Base")
	handle := f.method(base, "handle")
	impl := f.class(file, "Impl")
	implHandle := f.method(impl, "handle")
	deps := []core.EntityDep{extends(impl, base)}

	assert.Empty(t, DetectOverrides(f.entities, deps, f.reader))
	got := DetectOverrides(f.entities, deps, f.reader, WithNotImplementedAbstract(true))
	assert.Equal(t, []core.EntityDep{override(implHandle, handle)}, got)
}

func TestDetectOverrides_JavaAnnotation(t *testing.T) {
	t.Parallel()
	animal := `package zoo;

public class Animal {
    public void speak() {}
    public void sleep() {}
}
`
	dog := `package zoo;

public class Dog extends Animal {
    @Override
    public void speak() {}

    public void sleep() {}
}
`
	f := newFixture()
	af := f.file("zoo/Animal.java", animal)
	a := f.class(af, "Animal")
	aSpeak := f.method(a, "speak")
	f.method(a, "sleep")
	df := f.file("zoo/Dog.java", dog)
	d := f.class(df, "Dog")
	dSpeak := f.method(d, "speak")
	f.method(d, "sleep")

	got := DetectOverrides(f.entities, []core.EntityDep{extends(d, a)}, f.reader)
	assert.Equal(t, []core.EntityDep{override(dSpeak, aSpeak)}, got)
}

func TestDetectOverrides_JavaLinksFirstAncestor(t *testing.T) {
	t.Parallel()
	src := `class A { void run() {} }
class B extends A { @Override void run() {} }
class C extends B { @java.lang.Override void run() {} }
`
	f := newFixture()
	file := f.file("Chain.java", src)
	a := f.class(file, "A")
	aRun := f.method(a, "run")
	b := f.class(file, "B")
	bRun := f.method(b, "run")
	c := f.class(file, "C")
	cRun := f.method(c, "run")

	got := DetectOverrides(f.entities, []core.EntityDep{extends(b, a), extends(c, b)}, f.reader)
	assert.ElementsMatch(t, []core.EntityDep{override(bRun, aRun), override(cRun, bRun)}, got)
}

func TestDetectOverrides_UnreadableFileSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture()
	file := f.file("animals.py", animalsPy)
	animal := f.class(file, "Animal")
	f.method(animal, "speak")
	dog := f.class(file, "Dog")
	f.method(dog, "speak")
	delete(f.reader, file.ContentId)

	assert.Empty(t, DetectOverrides(f.entities, []core.EntityDep{extends(dog, animal)}, f.reader))
}

func TestDetectOverrides_NoInheritanceNoEdges(t *testing.T) {
	t.Parallel()
	f := newFixture()
	file := f.file("animals.py", animalsPy)
	animal := f.class(file, "Animal")
	f.method(animal, "speak")
	dog := f.class(file, "Dog")
	f.method(dog, "speak")

	assert.Empty(t, DetectOverrides(f.entities, nil, f.reader))
}

func TestDetectOverrides_IdenticalFilesKeptApart(t *testing.T) {
	t.Parallel()
	f := newFixture()
	a := f.file("a/animals.py", animalsPy)
	b := f.file("b/animals.py", animalsPy)
	require.Equal(t, a.ContentId, b.ContentId)

	var want, deps []core.EntityDep
	for _, file := range []core.Entity{a, b} {
		animal := f.class(file, "Animal")
		speak := f.method(animal, "speak")
		f.method(animal, "eat")
		dog := f.class(file, "Dog")
		dogSpeak := f.method(dog, "speak")
		f.method(dog, "eat")
		deps = append(deps, extends(dog, animal))
		want = append(want, override(dogSpeak, speak))
	}

	got := DetectOverrides(f.entities, deps, f.reader)
	assert.ElementsMatch(t, want, got)
}

func TestInferExtends_IdenticalFilesKeptApart(t *testing.T) {
	t.Parallel()
	src := `class Animal:
    pass

class Dog(Animal):
    pass
`
	f := newFixture()
	a := f.file("a.py", src)
	b := f.file("b.py", src)
	aAnimal, aDog := f.class(a, "Animal"), f.class(a, "Dog")
	bAnimal, bDog := f.class(b, "Animal"), f.class(b, "Dog")

	got := InferExtends(f.entities, nil, f.reader)
	require.Len(t, got, 2)
	pairs := make(map[core.EntityId]core.EntityId)
	for _, d := range got {
		pairs[d.Src] = d.Tgt
	}
	assert.Equal(t, aAnimal.Id, pairs[aDog.Id])
	assert.Equal(t, bAnimal.Id, pairs[bDog.Id])
}

func TestAncestors_PreorderExcludesStart(t *testing.T) {
	t.Parallel()
	f := newFixture()
	file := f.file("m.py", "")
	a, b, c, d := f.class(file, "A"), f.class(file, "B"), f.class(file, "C"), f.class(file, "D")
	m := newModel(f.entities, []core.EntityDep{extends(d, b), extends(d, c), extends(b, a), extends(c, a), extends(a, d)})

	assert.Equal(t, []core.EntityId{b.Id, a.Id, c.Id}, m.ancestors(d.Id))
}

func TestInferExtends(t *testing.T) {
	t.Parallel()
	base := `class Base:
    pass
`
	app := `import lib
from abc import ABC

class Animal(ABC):
    pass

class Dog(Animal):
    pass

class Service(lib.Base, metaclass=Meta):
    pass

class Known(Base):
    pass
`
	f := newFixture()
	lf := f.file("lib.py", base)
	libBase := f.class(lf, "Base")
	af := f.file("app.py", app)
	animal := f.class(af, "Animal")
	dog := f.class(af, "Dog")
	service := f.class(af, "Service")
	known := f.class(af, "Known")
	other := f.class(af, "Other")

	got := InferExtends(f.entities, []core.EntityDep{extends(known, other)}, f.reader)
	require.Len(t, got, 2)
	assert.Equal(t, dog.Id, got[0].Src)
	assert.Equal(t, animal.Id, got[0].Tgt)
	assert.Equal(t, core.Extend, got[0].Kind)
	assert.Equal(t, service.Id, got[1].Src)
	assert.Equal(t, libBase.Id, got[1].Tgt)
}

func TestMapReader_NotFound(t *testing.T) {
	t.Parallel()
	r := MapReader{core.ContentIdOf("x"): "x"}
	s, err := r.Read(core.ContentIdOf("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	_, err = r.Read(core.ContentIdOf("y"))
	assert.True(t, errors.Is(err, ErrNotFound))
}
