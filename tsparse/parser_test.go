package tsparse

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, err := ParseFile("test.ts", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return f
}

func findDecl(t *testing.T, f *File, name string) Decl {
	t.Helper()
	for _, d := range f.Decls {
		if d.DeclName() == name {
			return d
		}
	}
	t.Fatalf("declaration %q not found", name)
	return nil
}

func TestParseFunctions(t *testing.T) {
	src := `
import { readFile } from 'node:fs/promises'

const users = [{ name: 'Alice', age: 30 }];

/** Returns all users younger than maxAge. */
export async function getUsers(options: { maxAge: number }): Promise<User[]> {
  return users.filter(u => u.age <= options.maxAge)
}

export async function addUser({ user }: { user: User }): Promise<void> {
  users.push(user)
}

function helper(a: string, b?: number, ...rest: string[]) {
  if (a) { return 1 } else { return 2 }
}

export function sync(): number { return 1 }
`
	f := mustParse(t, src)

	if len(f.Imports) != 1 || f.Imports[0].Specifier != "node:fs/promises" {
		t.Fatalf("imports = %+v", f.Imports)
	}

	get := findDecl(t, f, "getUsers").(*FuncDecl)
	if !get.Async || !get.Exported || !get.HasBody {
		t.Errorf("getUsers flags = async:%v exported:%v body:%v", get.Async, get.Exported, get.HasBody)
	}
	if get.Doc != "Returns all users younger than maxAge." {
		t.Errorf("doc = %q", get.Doc)
	}
	if len(get.Params) != 1 || get.Params[0].Name != "options" {
		t.Fatalf("params = %+v", get.Params)
	}
	if got := get.Params[0].Type.String(); got != "{ maxAge: number }" {
		t.Errorf("param type = %q", got)
	}
	if got := get.Result.String(); got != "Promise<User[]>" {
		t.Errorf("result = %q", got)
	}

	add := findDecl(t, f, "addUser").(*FuncDecl)
	if add.Params[0].Name != "{...}" {
		t.Errorf("destructured param name = %q", add.Params[0].Name)
	}
	if got := add.Result.String(); got != "Promise<void>" {
		t.Errorf("result = %q", got)
	}

	helper := findDecl(t, f, "helper").(*FuncDecl)
	if helper.Exported || helper.Async {
		t.Error("helper should be neither exported nor async")
	}
	if len(helper.Params) != 3 || !helper.Params[1].Optional || !helper.Params[2].Rest {
		t.Errorf("helper params = %+v", helper.Params)
	}
	if helper.Result != nil {
		t.Errorf("helper result = %v, want nil", helper.Result)
	}

	sync := findDecl(t, f, "sync").(*FuncDecl)
	if sync.Async || !sync.Exported {
		t.Error("sync flags wrong")
	}
	if len(f.Decls) != 4 {
		t.Errorf("got %d decls, want 4", len(f.Decls))
	}
}

func TestParseTypeDeclarations(t *testing.T) {
	src := `
export interface User {
  name: string
  age?: number;
  readonly tags: string[],
  greet(): void
  [key: string]: unknown
}

interface Admin extends User, Auditable {
  level: 1 | 2 | 3
}

export type Node = {
  id: string
  nodes: (Node | null)[]
}

type Handler = (req: Request) => Promise<void>
type Keys = keyof User
type Pick2<T, K extends keyof T> = { [P in K]: T[P] }
type Cond<T> = T extends string ? 'a' : 'b'

export class Group {
  static count = 0
  #secret = 'x'
  private helperField: number = 1
  name: string
  users?: User[]
  constructor(name: string) { this.name = name }
  get size(): number { return 0 }
  async load(): Promise<void> {}
}

export enum Color { Red = 'red', Green = 'green' }
`
	f := mustParse(t, src)

	user := findDecl(t, f, "User").(*InterfaceDecl)
	if len(user.Members) != 5 {
		t.Fatalf("User members = %d, want 5", len(user.Members))
	}
	wantMembers := []struct {
		name     string
		kind     MemberKind
		optional bool
		typ      string
	}{
		{"name", MemberProperty, false, "string"},
		{"age", MemberProperty, true, "number"},
		{"tags", MemberProperty, false, "string[]"},
		{"greet", MemberMethod, false, "(): void"},
		{"key: string", MemberIndex, false, "unknown"},
	}
	for i, want := range wantMembers {
		m := user.Members[i]
		if m.Name != want.name || m.Kind != want.kind || m.Optional != want.optional || m.Type.String() != want.typ {
			t.Errorf("member %d = {%s %v %v %s}, want %+v", i, m.Name, m.Kind, m.Optional, m.Type, want)
		}
	}

	admin := findDecl(t, f, "Admin").(*InterfaceDecl)
	if admin.Exported {
		t.Error("Admin should not be exported")
	}
	if len(admin.Extends) != 2 || admin.Extends[1].String() != "Auditable" {
		t.Errorf("extends = %v", admin.Extends)
	}
	if _, ok := admin.Members[0].Type.(*UnionType); !ok {
		t.Errorf("level type = %T", admin.Members[0].Type)
	}

	node := findDecl(t, f, "Node").(*AliasDecl)
	obj, ok := node.Type.(*ObjectType)
	if !ok {
		t.Fatalf("Node type = %T", node.Type)
	}
	arr, ok := obj.Members[1].Type.(*ArrayType)
	if !ok {
		t.Fatalf("nodes type = %T", obj.Members[1].Type)
	}
	if got := arr.String(); got != "(Node | null)[]" {
		t.Errorf("nodes = %q", got)
	}

	if _, ok := findDecl(t, f, "Handler").(*AliasDecl).Type.(*FuncType); !ok {
		t.Error("Handler should be a function type")
	}
	for _, name := range []string{"Keys", "Pick2", "Cond"} {
		if _, ok := findDecl(t, f, name).(*AliasDecl).Type.(*OpaqueType); !ok {
			t.Errorf("%s should be opaque", name)
		}
	}
	if got := findDecl(t, f, "Pick2").(*AliasDecl).TypeParams; len(got) != 2 || got[1] != "K" {
		t.Errorf("type params = %v", got)
	}

	group := findDecl(t, f, "Group").(*ClassDecl)
	var names []string
	for _, m := range group.Members {
		names = append(names, m.Name)
	}
	if got := strings.Join(names, ","); got != "helperField,name,users" {
		t.Errorf("class members = %s", got)
	}

	if _, ok := findDecl(t, f, "Color").(*EnumDecl); !ok {
		t.Error("Color should be an enum")
	}
}

func TestParseImports(t *testing.T) {
	src := `
import type { User, Group as G } from './types'
import Default, { a } from "./mod.js";
import * as ns from './ns'
import './side-effect'
import fs = require('fs')
export type { Thing as Other } from './thing'
export * from './all'
export { local }
`
	f := mustParse(t, src)
	if len(f.Imports) != 6 {
		t.Fatalf("got %d imports, want 6", len(f.Imports))
	}
	first := f.Imports[0]
	if !first.TypeOnly || first.Specifier != "./types" || len(first.Names) != 2 {
		t.Errorf("first import = %+v", first)
	}
	if first.Names[1] != (ImportName{Name: "Group", Local: "G"}) {
		t.Errorf("alias = %+v", first.Names[1])
	}
	second := f.Imports[1]
	if second.Default != "Default" || len(second.Names) != 1 || second.Specifier != "./mod.js" {
		t.Errorf("second import = %+v", second)
	}
	if f.Imports[2].Namespace != "ns" {
		t.Errorf("namespace = %q", f.Imports[2].Namespace)
	}
	if f.Imports[3].Specifier != "./side-effect" {
		t.Errorf("side effect import = %+v", f.Imports[3])
	}
	re := f.Imports[4]
	if !re.Reexport || !re.TypeOnly || re.Names[0] != (ImportName{Name: "Thing", Local: "Other"}) {
		t.Errorf("re-export = %+v", re)
	}
	if star := f.Imports[5]; !star.Reexport || star.Specifier != "./all" || len(star.Names) != 0 {
		t.Errorf("star re-export = %+v", star)
	}
}

func TestParseTypeForms(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"string", "string"},
		{"Array<User>", "Array<User>"},
		{"Promise<Array<User>>", "Promise<Array<User>>"},
		{"string | null | undefined", "string | null | undefined"},
		{"A & B", "A & B"},
		{"User[][]", "User[][]"},
		{"[string, number]", "[string, number]"},
		{"'a' | 'b'", "'a' | 'b'"},
		{"-1", "-1"},
		{"ns.Type", "ns.Type"},
		{"{ a: string; b?: number }", "{ a: string; b?: number }"},
		{"(a: string) => void", "(a: string) => void"},
		{"typeof config", "typeof config"},
		{"User['name']", "User['name']"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f := mustParse(t, "type T = "+tt.src+"\n")
			got := f.Decls[0].(*AliasDecl).Type.String()
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStatementsAreSkipped(t *testing.T) {
	src := `
const a = { x: [1, 2, 3], y: () => { return 'z' } }
let b = a.x.map(v => v * 2)
if (b.length) {
  console.log(b)
}
export const handler = async () => {}
export default a
export { a as c }
declare module 'thing' {
  export function inner(): void
}
export async function last(): Promise<string> { return '' }
`
	f := mustParse(t, src)
	if len(f.Decls) != 1 || f.Decls[0].DeclName() != "last" {
		var names []string
		for _, d := range f.Decls {
			names = append(names, d.DeclName())
		}
		t.Errorf("decls = %v, want [last]", names)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := ParseFile("bad.ts", []byte("export interface Broken {\n  a: string\n  b: \n}\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("error type = %T", err)
	}
	if list[0].Pos.Line != 4 || list[0].Pos.Filename != "bad.ts" {
		t.Errorf("position = %v", list[0].Pos)
	}
	if !strings.Contains(err.Error(), "bad.ts:4:1") {
		t.Errorf("error = %q", err)
	}
}
