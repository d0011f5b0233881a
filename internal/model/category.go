package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Category is one RMIB interest category as injected by the test page.
type Category struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Gradient    string `json:"gradient"`
}

// DefaultCategories is the RMIB catalog in declaration order.
var DefaultCategories = []Category{
	{Key: "outdoor", Name: "Outdoor (Alam Terbuka)", Description: "Aktivitas yang berhubungan dengan alam dan lingkungan luar", Icon: "fas fa-tree", Gradient: "from-green-500 to-emerald-600"},
	{Key: "mechanical", Name: "Mechanical (Mekanik)", Description: "Pekerjaan dengan mesin, alat, dan teknologi", Icon: "fas fa-cog", Gradient: "from-blue-500 to-indigo-600"},
	{Key: "computational", Name: "Computational (Komputasi)", Description: "Bekerja dengan angka, data, dan analisis", Icon: "fas fa-calculator", Gradient: "from-purple-500 to-violet-600"},
	{Key: "scientific", Name: "Scientific (Sains)", Description: "Penelitian, eksperimen, dan penemuan ilmiah", Icon: "fas fa-flask", Gradient: "from-indigo-500 to-blue-600"},
	{Key: "personal_contact", Name: "Personal Contact (Hubungan Personal)", Description: "Berinteraksi dan membantu orang lain", Icon: "fas fa-handshake", Gradient: "from-pink-500 to-rose-600"},
	{Key: "aesthetic", Name: "Aesthetic (Estetika)", Description: "Seni, desain, dan keindahan", Icon: "fas fa-palette", Gradient: "from-orange-500 to-amber-600"},
	{Key: "literary", Name: "Literary (Sastra)", Description: "Menulis, membaca, dan komunikasi verbal", Icon: "fas fa-book", Gradient: "from-teal-500 to-cyan-600"},
	{Key: "musical", Name: "Musical (Musik)", Description: "Musik, suara, dan harmoni", Icon: "fas fa-music", Gradient: "from-red-500 to-rose-600"},
	{Key: "social_service", Name: "Social Service (Pelayanan Sosial)", Description: "Membantu masyarakat dan kesejahteraan sosial", Icon: "fas fa-hands-helping", Gradient: "from-amber-500 to-yellow-600"},
	{Key: "clerical", Name: "Clerical (Administratif)", Description: "Administrasi, organisasi, dan tata kelola", Icon: "fas fa-file-alt", Gradient: "from-gray-500 to-slate-600"},
	{Key: "practical", Name: "Practical (Praktis)", Description: "Pekerjaan praktis dan aplikatif sehari-hari", Icon: "fas fa-tools", Gradient: "from-yellow-500 to-orange-600"},
	{Key: "medical", Name: "Medical (Medis)", Description: "Kesehatan dan perawatan medis", Icon: "fas fa-heartbeat", Gradient: "from-red-500 to-pink-600"},
}

// LoadCategories reads a catalog from a JSON file. Both the list form
// ([{"key": ...}]) and the page's object form ({"outdoor": {...}}) are
// accepted; the object form is ordered by key because JSON objects carry no order.
func LoadCategories(path string) ([]Category, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}

	var list []Category
	if err := json.Unmarshal(raw, &list); err == nil {
		return checkCategories(list)
	}

	var byKey map[string]Category
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	list = make([]Category, 0, len(byKey))
	for key, c := range byKey {
		c.Key = key
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return checkCategories(list)
}

func checkCategories(list []Category) ([]Category, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("categories: empty catalog")
	}
	seen := make(map[string]struct{}, len(list))
	for _, c := range list {
		if c.Key == "" {
			return nil, fmt.Errorf("categories: entry %q has no key", c.Name)
		}
		if _, dup := seen[c.Key]; dup {
			return nil, fmt.Errorf("categories: duplicate key %q", c.Key)
		}
		seen[c.Key] = struct{}{}
	}
	return list, nil
}
